package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"bond-log-enhancer/internal/domain"
)

const runsTable = "enhancement_runs"

// runRow is the enhancement_runs table layout. Page results are kept as a
// JSON column.
type runRow struct {
	ID               string          `json:"id"`
	InputPath        string          `json:"input_path"`
	OutputPath       string          `json:"output_path"`
	Preset           string          `json:"preset"`
	PageCount        int             `json:"page_count"`
	PagesProcessed   int             `json:"pages_processed"`
	PagesWithText    int             `json:"pages_with_text"`
	PagesWithOverlay int             `json:"pages_with_overlay"`
	PagesFailed      int             `json:"pages_failed"`
	Pages            json.RawMessage `json:"pages"`
	FatalError       string          `json:"fatal_error"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
}

func toRow(s *domain.RunSummary) (runRow, error) {
	pages := s.Pages
	if pages == nil {
		pages = []domain.PageResult{}
	}
	data, err := json.Marshal(pages)
	if err != nil {
		return runRow{}, fmt.Errorf("failed to marshal page results: %w", err)
	}
	return runRow{
		ID:               s.ID,
		InputPath:        s.InputPath,
		OutputPath:       s.OutputPath,
		Preset:           s.Preset,
		PageCount:        s.PageCount,
		PagesProcessed:   s.PagesProcessed,
		PagesWithText:    s.PagesWithText,
		PagesWithOverlay: s.PagesWithOverlay,
		PagesFailed:      s.PagesFailed,
		Pages:            data,
		FatalError:       s.FatalError,
		StartedAt:        s.StartedAt,
		FinishedAt:       s.FinishedAt,
	}, nil
}

func (r runRow) summary() (*domain.RunSummary, error) {
	s := &domain.RunSummary{
		ID:               r.ID,
		InputPath:        r.InputPath,
		OutputPath:       r.OutputPath,
		Preset:           r.Preset,
		PageCount:        r.PageCount,
		PagesProcessed:   r.PagesProcessed,
		PagesWithText:    r.PagesWithText,
		PagesWithOverlay: r.PagesWithOverlay,
		PagesFailed:      r.PagesFailed,
		FatalError:       r.FatalError,
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
	}
	if len(r.Pages) > 0 && string(r.Pages) != "null" {
		if err := json.Unmarshal(r.Pages, &s.Pages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal page results: %w", err)
		}
	}
	return s, nil
}

// SupabaseRunRepository stores run summaries in the enhancement_runs table.
type SupabaseRunRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

// NewSupabaseRunRepository creates a new Supabase run repository
func NewSupabaseRunRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) *SupabaseRunRepository {
	return &SupabaseRunRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

// Save upserts the summary by run ID.
func (r *SupabaseRunRepository) Save(ctx context.Context, summary *domain.RunSummary) error {
	client := r.supabaseClient.DB()
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}
	row, err := toRow(summary)
	if err != nil {
		return err
	}

	if _, _, err := client.From(runsTable).Insert(row, true, "id", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	r.logger.Debug("Run saved", "run_id", summary.ID, "pages", summary.PagesProcessed)
	return nil
}

// Get loads a summary by run ID.
func (r *SupabaseRunRepository) Get(ctx context.Context, id string) (*domain.RunSummary, error) {
	client := r.supabaseClient.DB()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From(runsTable).
		Select("*", "", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var rows []runRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrRunNotFound
	}
	return rows[0].summary()
}

// MemoryRunRepository keeps summaries in process. It is used when Supabase
// is not configured and by tests.
type MemoryRunRepository struct {
	mu   sync.RWMutex
	runs map[string]*domain.RunSummary
}

func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{runs: make(map[string]*domain.RunSummary)}
}

func (r *MemoryRunRepository) Save(ctx context.Context, summary *domain.RunSummary) error {
	if summary == nil || summary.ID == "" {
		return &domain.ValidationError{Field: "id", Message: "run summary requires an id"}
	}
	cp := *summary
	cp.Pages = append([]domain.PageResult(nil), summary.Pages...)
	r.mu.Lock()
	r.runs[summary.ID] = &cp
	r.mu.Unlock()
	return nil
}

func (r *MemoryRunRepository) Get(ctx context.Context, id string) (*domain.RunSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.runs[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	cp := *s
	return &cp, nil
}

// List returns every stored run, newest first.
func (r *MemoryRunRepository) List() []*domain.RunSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.RunSummary, 0, len(r.runs))
	for _, s := range r.runs {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}
