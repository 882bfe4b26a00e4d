package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(enhancementHandler *EnhancementHandler, authMiddleware mux.MiddlewareFunc) http.Handler {
	router := mux.NewRouter()

	// Health check endpoint (no auth required)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"bond-log-enhancer"}`))
	}).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	protected := api.PathPrefix("").Subrouter()
	if authMiddleware != nil {
		protected.Use(authMiddleware)
	}

	protected.HandleFunc("/presets", enhancementHandler.ListPresets).Methods("GET")
	protected.HandleFunc("/enhancements", enhancementHandler.CreateEnhancement).Methods("POST")
	protected.HandleFunc("/enhancements/{id}", enhancementHandler.GetEnhancement).Methods("GET")
	protected.HandleFunc("/enhancements/{id}/document", enhancementHandler.GetEnhancedDocument).Methods("GET")
	protected.HandleFunc("/search", enhancementHandler.Search).Methods("POST")

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // SvelteKit dev server
			"http://localhost:4173", // SvelteKit preview
			"http://localhost:3000", // Alternative dev port
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
		},
		ExposedHeaders: []string{
			"Content-Disposition",
		},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})

	return c.Handler(router)
}
