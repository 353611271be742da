// Package memory holds in-memory template and assignment stores with the same
// contracts as the Postgres repositories. Used by service and route tests.
package memory

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/google/uuid"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Store backs both repositories. Copies go in and out so callers never share
// maps with the store.
type Store struct {
	mu          sync.Mutex
	txMu        sync.Mutex
	seq         int
	templates   []*models.Template
	assignments []*models.Assignment

	// Err, when set, is returned by every repository call.
	Err error
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Templates() *TemplateRepository {
	return &TemplateRepository{store: s}
}

func (s *Store) Assignments() *AssignmentRepository {
	return &AssignmentRepository{store: s}
}

// WithinTx runs fn while holding the store's transaction lock. There is no rollback.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx)
}

// now returns strictly increasing timestamps so stored order is deterministic.
func (s *Store) now() time.Time {
	s.seq++
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Millisecond)
}

func copyTemplate(t *models.Template) *models.Template {
	c := *t
	c.ChartData = copyMap(t.ChartData)
	return &c
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch value := v.(type) {
		case map[string]any:
			out[k] = copyMap(value)
		case []any:
			items := make([]any, len(value))
			for i, item := range value {
				if im, ok := item.(map[string]any); ok {
					items[i] = copyMap(im)
				} else {
					items[i] = item
				}
			}
			out[k] = items
		default:
			out[k] = v
		}
	}
	return out
}

type TemplateRepository struct {
	store *Store
}

func (r *TemplateRepository) Create(_ context.Context, template *models.Template) (*models.Template, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	for _, existing := range s.templates {
		if existing.Shop == template.Shop && existing.Name == template.Name {
			return nil, fernerrors.DuplicateNameError(template.Name)
		}
	}

	if template.ID == "" {
		template.ID = uuid.New().String()
	}
	now := s.now()
	template.CreatedAt = now
	template.UpdatedAt = now
	s.templates = append(s.templates, copyTemplate(template))
	return template, nil
}

func (r *TemplateRepository) Update(_ context.Context, template *models.Template) (*models.Template, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	for _, existing := range s.templates {
		if existing.ID != template.ID && existing.Shop == template.Shop && existing.Name == template.Name {
			return nil, fernerrors.DuplicateNameError(template.Name)
		}
	}

	for i, existing := range s.templates {
		if existing.ID == template.ID && existing.Shop == template.Shop {
			template.CreatedAt = existing.CreatedAt
			template.UpdatedAt = s.now()
			s.templates[i] = copyTemplate(template)
			return template, nil
		}
	}
	return nil, httperror.NewHTTPError(http.StatusNotFound, "template not found")
}

func (r *TemplateRepository) GetByID(_ context.Context, shops []string, id string) (*models.Template, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	for _, t := range s.templates {
		if t.ID == id && ectolinq.Contains(shops, t.Shop) {
			return copyTemplate(t), nil
		}
	}
	return nil, httperror.NewHTTPError(http.StatusNotFound, "template not found")
}

func (r *TemplateRepository) GetByIDs(_ context.Context, ids []string) ([]*models.Template, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := []*models.Template{}
	for _, t := range s.templates {
		if ectolinq.Contains(ids, t.ID) {
			out = append(out, copyTemplate(t))
		}
	}
	return out, nil
}

func (r *TemplateRepository) List(_ context.Context, shops []string) ([]*models.Template, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := []*models.Template{}
	for _, t := range s.templates {
		if ectolinq.Contains(shops, t.Shop) {
			out = append(out, copyTemplate(t))
		}
	}
	// newest first
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *TemplateRepository) ExistsByName(_ context.Context, shops []string, name, excludeID string) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}

	for _, t := range s.templates {
		if t.Name == name && t.ID != excludeID && ectolinq.Contains(shops, t.Shop) {
			return true, nil
		}
	}
	return false, nil
}

func (r *TemplateRepository) Delete(_ context.Context, shops []string, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	for i, t := range s.templates {
		if t.ID == id && ectolinq.Contains(shops, t.Shop) {
			s.templates = append(s.templates[:i], s.templates[i+1:]...)
			return nil
		}
	}
	return httperror.NewHTTPError(http.StatusNotFound, "template not found")
}

type AssignmentRepository struct {
	store *Store
}

func (r *AssignmentRepository) Create(_ context.Context, assignment *models.Assignment) (*models.Assignment, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	for _, existing := range s.assignments {
		if existing.Shop == assignment.Shop && existing.ProductID == assignment.ProductID && existing.TemplateID == assignment.TemplateID {
			existing.ProductTitle = assignment.ProductTitle
			assignment.ID = existing.ID
			assignment.CreatedAt = existing.CreatedAt
			return assignment, nil
		}
	}

	if assignment.ID == "" {
		assignment.ID = uuid.New().String()
	}
	assignment.CreatedAt = s.now()
	c := *assignment
	s.assignments = append(s.assignments, &c)
	return assignment, nil
}

func (r *AssignmentRepository) ListByProduct(_ context.Context, shops []string, productID string) ([]*models.Assignment, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := []*models.Assignment{}
	for _, a := range s.assignments {
		if a.ProductID == productID && ectolinq.Contains(shops, a.Shop) {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *AssignmentRepository) DeleteByIDs(_ context.Context, ids []string) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}

	kept := s.assignments[:0]
	var removed int64
	for _, a := range s.assignments {
		if ectolinq.Contains(ids, a.ID) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	s.assignments = kept
	return removed, nil
}

func (r *AssignmentRepository) DeleteByTemplate(_ context.Context, shops []string, templateID string) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}

	kept := s.assignments[:0]
	var removed int64
	for _, a := range s.assignments {
		if a.TemplateID == templateID && ectolinq.Contains(shops, a.Shop) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	s.assignments = kept
	return removed, nil
}

// LockProduct is a no-op; WithinTx already serializes writers.
func (r *AssignmentRepository) LockProduct(context.Context, string, string) error {
	return r.store.Err
}
