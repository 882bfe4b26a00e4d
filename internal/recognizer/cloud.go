package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bond-log-enhancer/internal/domain"

	"golang.org/x/time/rate"
)

// CloudConfig configures the remote extraction service.
type CloudConfig struct {
	URL    string
	Token  string
	RPS    float64 // requests per second, <= 0 means unthrottled
	Client *http.Client
}

// Cloud uploads the enhanced page image to an extraction endpoint and reads
// back text with optional blocks.
type Cloud struct {
	url     string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// extraction is the response body, also used by sidecar JSON files.
type extraction struct {
	Text   string            `json:"text"`
	Blocks []extractionBlock `json:"blocks"`
}

type extractionBlock struct {
	Text       string  `json:"text"`
	Box        [4]int  `json:"box"` // x1, y1, x2, y2 in pixels, top-left origin
	Confidence float64 `json:"confidence"`
}

// NewCloud validates the endpoint and prepares the rate limiter.
func NewCloud(cfg CloudConfig) (*Cloud, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, &domain.ValidationError{Field: "CLOUD_OCR_URL", Message: "cloud recognizer requires an endpoint"}
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	return &Cloud{
		url:     cfg.URL,
		token:   cfg.Token,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

func (c *Cloud) Name() string { return BackendCloud }

func (c *Cloud) Recognize(ctx context.Context, in domain.RecognizeInput) (domain.Recognition, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Recognition{}, err
	}
	png, err := encodePNG(in.Bitmap)
	if err != nil {
		return domain.Recognition{}, err
	}

	var data bytes.Buffer
	w := multipart.NewWriter(&data)
	w.WriteField("page", strconv.Itoa(in.PageIndex+1))
	if in.Bitmap.DPI > 0 {
		w.WriteField("dpi", strconv.Itoa(int(in.Bitmap.DPI)))
	}
	if len(in.Languages) > 0 {
		w.WriteField("languages", strings.Join(in.Languages, ","))
	}
	f, err := w.CreateFormFile("file", pageFileName(in.PageIndex)+".png")
	if err != nil {
		return domain.Recognition{}, err
	}
	if _, err := f.Write(png); err != nil {
		return domain.Recognition{}, err
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &data)
	if err != nil {
		return domain.Recognition{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Recognition{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Recognition{}, fmt.Errorf("cloud ocr: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out extraction
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Recognition{}, fmt.Errorf("decode cloud ocr response: %w", err)
	}
	return out.recognition(c.Name()), nil
}

func (e extraction) recognition(backend string) domain.Recognition {
	rec := domain.Recognition{Backend: backend, Text: strings.TrimSpace(e.Text)}
	for _, b := range e.Blocks {
		text := strings.TrimSpace(b.Text)
		if text == "" {
			continue
		}
		conf := b.Confidence
		if conf > 1 {
			conf /= 100
		}
		rec.Words = append(rec.Words, domain.Word{
			Text:       text,
			Box:        image.Rect(b.Box[0], b.Box[1], b.Box[2], b.Box[3]),
			Confidence: conf,
		})
	}
	return rec
}
