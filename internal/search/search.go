// Package search issues weighted multimodal queries and installs their
// results in the session.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/deepsearch/internal/backend"
	"github.com/abelbrown/deepsearch/internal/otel"
	"github.com/abelbrown/deepsearch/internal/session"
	"github.com/abelbrown/deepsearch/internal/store"
)

// Weight bounds for both the visual and the text weight.
const (
	MinWeight     = 0.0
	MaxWeight     = 3.0
	WeightStep    = 0.1
	DefaultWeight = 1.0
)

var (
	// ErrEmptyQuery is returned, without any network call, for blank text.
	ErrEmptyQuery = errors.New("search: empty query")

	// ErrWeightOutOfRange is returned for weights outside [MinWeight, MaxWeight].
	ErrWeightOutOfRange = errors.New("search: weight out of range")
)

const comp = "search"

// Searcher is the slice of the backend client the controller needs.
type Searcher interface {
	Search(ctx context.Context, q backend.SearchQuery) ([]backend.SearchResult, error)
}

// History records issued searches. *store.Store satisfies it.
type History interface {
	Record(e store.Entry) error
}

// Controller builds queries from the current weights. Results are held by the
// session controller; this type only decides what replaces them.
type Controller struct {
	backend Searcher
	ctrl    *session.Controller
	log     *otel.Logger
	history History

	mu     sync.Mutex
	visual float64
	text   float64
}

// New creates a Controller with both weights at DefaultWeight. history may
// be nil.
func New(b Searcher, ctrl *session.Controller, history History, log *otel.Logger) *Controller {
	return &Controller{
		backend: b,
		ctrl:    ctrl,
		log:     log,
		history: history,
		visual:  DefaultWeight,
		text:    DefaultWeight,
	}
}

// ValidWeight reports whether w is an acceptable weight.
func ValidWeight(w float64) bool {
	return !math.IsNaN(w) && w >= MinWeight && w <= MaxWeight
}

// SetWeights replaces both weights. If either is out of range neither is
// changed; values are never clamped.
func (c *Controller) SetWeights(visual, text float64) error {
	if !ValidWeight(visual) {
		return fmt.Errorf("%w: visual %v", ErrWeightOutOfRange, visual)
	}
	if !ValidWeight(text) {
		return fmt.Errorf("%w: text %v", ErrWeightOutOfRange, text)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visual, c.text = visual, text
	return nil
}

// Weights returns the current visual and text weights.
func (c *Controller) Weights() (visual, text float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visual, c.text
}

// Search runs text against the index with the current weights. On success the
// returned results have replaced the session's result set, even when empty.
// On failure the previous results are kept and the error is only logged
// before being returned; callers need not surface it.
func (c *Controller) Search(ctx context.Context, text string) ([]backend.SearchResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}

	visual, textW := c.Weights()
	q := backend.SearchQuery{Text: text, VisualWeight: visual, TextWeight: textW}
	qid := uuid.NewString()
	epoch := c.ctrl.ResultsEpoch()

	c.log.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindSearchStart, Comp: comp,
		QueryID: qid, Query: text, Extra: map[string]any{"visual_weight": visual, "text_weight": textW}})

	start := time.Now()
	results, err := c.backend.Search(ctx, q)
	if err != nil {
		c.log.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindSearchError, Comp: comp,
			QueryID: qid, Query: text, Dur: time.Since(start), Err: err.Error()})
		c.record(qid, q, -1)
		return nil, err
	}

	if err := c.ctrl.ReplaceResults(epoch, text, results); err != nil {
		// reset while the query was in flight
		c.log.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindStale, Comp: comp,
			QueryID: qid, Query: text, Msg: "results dropped after reset"})
		return nil, err
	}

	c.log.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindSearchComplete, Comp: comp,
		QueryID: qid, Query: text, Dur: time.Since(start), Count: len(results)})
	c.record(qid, q, len(results))
	return results, nil
}

func (c *Controller) record(qid string, q backend.SearchQuery, n int) {
	if c.history == nil {
		return
	}
	err := c.history.Record(store.Entry{
		QueryID:      qid,
		Query:        q.Text,
		VisualWeight: q.VisualWeight,
		TextWeight:   q.TextWeight,
		Results:      n,
	})
	if err != nil {
		c.log.Error(otel.KindStoreError, comp, err)
	}
}
