package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/cart"
	"github.com/Ramsey-B/fern/pkg/chart"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/objectstore"
	"github.com/Ramsey-B/fern/pkg/storefront"
)

var (
	// ErrUnsavedChanges is returned by RequestClose while the form holds input.
	ErrUnsavedChanges = errors.New("you have unsaved measurements")
	// ErrInvalidTransition is returned when an operation is not allowed on the current step.
	ErrInvalidTransition = errors.New("invalid wizard transition")
	// ErrStale is returned when the wizard moved on while a request was in flight.
	ErrStale = errors.New("the wizard changed while the request was in flight")
	// ErrBusy is returned when another request of the session is still in flight.
	ErrBusy = errors.New("a request is already in progress")
	// ErrUnknownField is returned for a field id the chart does not have.
	ErrUnknownField = errors.New("unknown measurement field")
)

// ChartLoader resolves a product's chart.
type ChartLoader interface {
	ResolveChart(ctx context.Context, shop, productID string, kind *chart.Kind) (*storefront.ChartResponse, error)
}

// ProfileStore keeps the buyer's saved profiles.
type ProfileStore interface {
	ListProfiles(ctx context.Context, shop string) ([]storefront.Template, error)
	SaveProfile(ctx context.Context, shop string, draft storefront.ProfileDraft) (*storefront.Template, error)
	DeleteProfile(ctx context.Context, shop, id string) error
}

// VariantSource reports the product variant currently selected on the page.
type VariantSource interface {
	SelectedVariantID(ctx context.Context) (string, error)
}

// StaticVariant is a VariantSource that always returns the same id.
type StaticVariant string

func (v StaticVariant) SelectedVariantID(context.Context) (string, error) {
	return string(v), nil
}

// CartAdder adds a line item to the buyer's cart.
type CartAdder interface {
	Add(ctx context.Context, item cart.LineItem) error
}

// Deps are the collaborators of a Session.
type Deps struct {
	Charts     ChartLoader
	Profiles   ProfileStore
	Variants   VariantSource
	Cart       CartAdder
	Normalizer *objectstore.Normalizer
	Logger     ectologger.Logger
}

// Session is one buyer's pass through the wizard. It is safe for concurrent use.
type Session struct {
	mu   sync.Mutex
	deps Deps

	shop      string
	productID string

	step     Step
	epoch    uint64
	inFlight bool

	productName string
	template    *storefront.Template
	chart       *chart.Measurement
	fields      []chart.MeasurementField

	values         map[string]string
	unit           chart.Unit
	fitPreference  string
	stitchingNotes string

	errors     map[string]string
	focus      string
	guideField string

	pendingClose    bool
	scrollToTop     bool
	loadingProfiles bool
	profiles        []storefront.Template
	savedProfile    *storefront.Template
	lastErr         error
}

// Open loads the product's custom chart and starts a session on the details
// step. When the chart cannot be loaded the session is returned in load_failed
// together with the error.
func Open(ctx context.Context, deps Deps, shop, productID string) (*Session, error) {
	if deps.Normalizer == nil {
		deps.Normalizer = objectstore.NewNormalizer("", "")
	}
	if deps.Logger == nil {
		deps.Logger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	}

	s := &Session{
		deps:      deps,
		shop:      shop,
		productID: productID,
		step:      StepDetails,
		values:    make(map[string]string),
		errors:    make(map[string]string),
		unit:      chart.UnitInches,
	}

	if err := s.load(ctx); err != nil {
		s.step = StepLoadFailed
		s.lastErr = err
		s.deps.Logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"shop":       shop,
			"product_id": productID,
		}).Warn("Failed to load measurement chart")
		return s, err
	}
	return s, nil
}

func (s *Session) load(ctx context.Context) error {
	if s.deps.Charts == nil {
		return errors.New("no chart loader configured")
	}

	kind := chart.KindCustom
	resp, err := s.deps.Charts.ResolveChart(ctx, s.shop, s.productID, &kind)
	if err != nil {
		return err
	}
	if resp == nil || !resp.HasChart || resp.Template == nil {
		return fernerrors.NewNotFoundError(fernerrors.ReasonNoAssignment, "No size chart is assigned to this product")
	}

	m, err := chart.DecodeMeasurement(resp.Template.ChartData)
	if err != nil {
		return fmt.Errorf("failed to read measurement chart: %w", err)
	}

	s.productName = resp.ProductName
	s.template = resp.Template
	s.chart = m
	s.fields = m.EnabledFields()
	if len(s.fields) > 0 && s.fields[0].Unit != "" {
		s.unit = s.fields[0].Unit
	}
	return nil
}

// moveTo changes step and bumps the epoch. Callers hold the lock.
func (s *Session) moveTo(target Step) error {
	if !s.step.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, s.step, target)
	}
	s.step = target
	s.epoch++
	s.scrollToTop = false
	s.pendingClose = false
	return nil
}

func (s *Session) requireStep(steps ...Step) error {
	if ectolinq.Contains(steps, s.step) {
		return nil
	}
	return fmt.Errorf("%w: not allowed on %s", ErrInvalidTransition, s.step)
}

// begin marks a request in flight and returns the epoch it belongs to.
// Callers hold the lock.
func (s *Session) begin() (uint64, error) {
	if s.inFlight {
		return 0, ErrBusy
	}
	s.inFlight = true
	return s.epoch, nil
}

// finish clears the in-flight flag and reports whether the response is still
// wanted. Callers hold the lock.
func (s *Session) finish(epoch uint64) bool {
	s.inFlight = false
	return s.epoch == epoch
}

func (s *Session) field(id string) (chart.MeasurementField, bool) {
	field := ectolinq.Find(s.fields, func(f chart.MeasurementField) bool {
		return f.ID == id
	})
	return field, field.ID != "" && field.ID == id
}

// Step returns the current step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Epoch returns the current epoch.
func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// ShowGuide opens the how-to-measure panel for a field.
func (s *Session) ShowGuide(fieldID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.field(fieldID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, fieldID)
	}
	if err := s.moveTo(StepHowToMeasure); err != nil {
		return err
	}
	s.guideField = fieldID
	return nil
}

// ShowDetails returns from the how-to-measure panel.
func (s *Session) ShowDetails() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.moveTo(StepDetails); err != nil {
		return err
	}
	s.guideField = ""
	return nil
}

// SetValue records the raw input of a field and clears its error.
func (s *Session) SetValue(fieldID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStep(StepDetails, StepReview); err != nil {
		return err
	}
	if _, ok := s.field(fieldID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, fieldID)
	}
	s.values[fieldID] = value
	delete(s.errors, fieldID)
	return nil
}

// SetUnit switches the displayed unit. Entered values are kept as they are.
func (s *Session) SetUnit(unit chart.Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unit = chart.ParseUnit(string(unit))
}

// SetFitPreference selects a fit option by key. An empty key clears it.
func (s *Session) SetFitPreference(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStep(StepDetails, StepReview); err != nil {
		return err
	}

	if !s.chart.FitPreferencesEnabled {
		return errors.New("fit preferences are not enabled for this chart")
	}
	if key != "" && !ectolinq.Contains(fitKeys(s.chart), key) {
		return fmt.Errorf("unknown fit preference %q", key)
	}
	s.fitPreference = key
	return nil
}

// SetStitchingNotes records free-form notes for the tailor.
func (s *Session) SetStitchingNotes(notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStep(StepDetails, StepReview); err != nil {
		return err
	}

	if !s.chart.StitchingNotesEnabled {
		return errors.New("stitching notes are not enabled for this chart")
	}
	s.stitchingNotes = notes
	return nil
}

// validate refreshes the field errors and focus. Callers hold the lock.
func (s *Session) validate() *ValidationErrors {
	verrs := Validate(s.fields, s.values)
	s.errors = make(map[string]string)
	s.focus = ""
	if verrs == nil {
		return nil
	}
	for _, fe := range verrs.Fields {
		s.errors[fe.FieldID] = fe.Message
	}
	s.focus = verrs.First()
	return verrs
}

// Review validates the form and moves to the review step. On failure the step
// is unchanged and Focus names the first invalid field.
func (s *Session) Review() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStep(StepDetails); err != nil {
		return err
	}
	if verrs := s.validate(); verrs != nil {
		return verrs
	}
	return s.moveTo(StepReview)
}

// EditDetails returns from review to the details step.
func (s *Session) EditDetails() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveTo(StepDetails)
}

// dirty reports whether closing would lose input. Callers hold the lock.
func (s *Session) dirty() bool {
	if s.step == StepCompleted || s.step == StepLoadFailed {
		return false
	}
	for _, v := range s.values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return strings.TrimSpace(s.fitPreference) != "" || strings.TrimSpace(s.stitchingNotes) != ""
}

// RequestClose closes the wizard unless it holds input, in which case it
// returns ErrUnsavedChanges and waits for ConfirmClose or CancelClose.
func (s *Session) RequestClose() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step == StepClosed {
		return nil
	}
	if s.dirty() {
		s.pendingClose = true
		return ErrUnsavedChanges
	}
	return s.moveTo(StepClosed)
}

// ConfirmClose closes the wizard and discards its input.
func (s *Session) ConfirmClose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step == StepClosed {
		return
	}
	_ = s.moveTo(StepClosed)
	s.values = make(map[string]string)
	s.errors = make(map[string]string)
	s.fitPreference = ""
	s.stitchingNotes = ""
}

// CancelClose keeps the wizard open.
func (s *Session) CancelClose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingClose = false
}

// BeginSaveProfile opens the save profile step.
func (s *Session) BeginSaveProfile() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveTo(StepSaveProfile)
}

// CancelSaveProfile returns to review without saving.
func (s *Session) CancelSaveProfile() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveTo(StepReview)
}

// SaveProfile saves the entered measurements as a named profile and returns
// to review. An empty name or an invalid form is rejected without a request.
func (s *Session) SaveProfile(ctx context.Context, name string) (*storefront.Template, error) {
	s.mu.Lock()
	if err := s.requireStep(StepSaveProfile); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		err := fernerrors.NewValidationError("Profile name is required").AddField("name")
		s.lastErr = err
		s.mu.Unlock()
		return nil, err
	}
	// review is editable, so the values are checked again before they are kept
	if verrs := s.validate(); verrs != nil {
		s.lastErr = verrs
		s.mu.Unlock()
		return nil, verrs
	}
	epoch, err := s.begin()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	draft := s.profileDraft(name)
	s.mu.Unlock()

	saved, err := s.deps.Profiles.SaveProfile(ctx, s.shop, draft)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish(epoch) {
		return nil, ErrStale
	}
	if err != nil {
		s.lastErr = err
		return nil, err
	}

	s.lastErr = nil
	s.savedProfile = saved
	if err := s.moveTo(StepReview); err != nil {
		return nil, err
	}
	return saved, nil
}

// profileDraft captures the current chart and values. Callers hold the lock.
func (s *Session) profileDraft(name string) storefront.ProfileDraft {
	saved := make(map[string]float64)
	for _, field := range s.fields {
		if v, ok, err := ParseValue(s.values[field.ID]); err == nil && ok {
			saved[field.ID] = v
		}
	}

	m := *s.chart
	m.SavedMeasurements = saved
	m.FitPreference = s.fitPreference
	m.StitchingNotes = strings.TrimSpace(s.stitchingNotes)

	return storefront.ProfileDraft{
		Name:            name,
		ChartData:       m.ToMap(),
		MeasurementFile: s.template.MeasurementFile,
	}
}

// OpenPreviousProfiles shows the buyer's saved profiles.
func (s *Session) OpenPreviousProfiles(ctx context.Context) error {
	s.mu.Lock()
	if err := s.requireStep(StepDetails); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.inFlight {
		s.mu.Unlock()
		return ErrBusy
	}
	if err := s.moveTo(StepPreviousProfiles); err != nil {
		s.mu.Unlock()
		return err
	}
	epoch, _ := s.begin()
	s.loadingProfiles = true
	s.profiles = nil
	s.mu.Unlock()

	profiles, err := s.deps.Profiles.ListProfiles(ctx, s.shop)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish(epoch) {
		return ErrStale
	}
	s.loadingProfiles = false
	if err != nil {
		s.lastErr = err
		return err
	}
	s.lastErr = nil
	s.profiles = profiles
	return nil
}

// ApplyProfile copies a saved profile into the form and returns to details.
// Fields the profile has no value for are left as they are.
func (s *Session) ApplyProfile(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStep(StepPreviousProfiles); err != nil {
		return err
	}
	profile := ectolinq.Find(s.profiles, func(p storefront.Template) bool {
		return p.ID == id
	})
	if profile.ID == "" || profile.ID != id {
		return fernerrors.NewNotFoundError(fernerrors.ReasonNotFound, fmt.Sprintf("profile %s not found", id))
	}

	saved, err := chart.DecodeMeasurement(profile.ChartData)
	if err != nil {
		return fmt.Errorf("failed to read profile: %w", err)
	}

	if err := s.moveTo(StepDetails); err != nil {
		return err
	}
	for _, field := range s.fields {
		if v, ok := saved.SavedMeasurements[field.ID]; ok {
			s.values[field.ID] = cart.FormatValue(v)
			delete(s.errors, field.ID)
		}
	}
	if s.chart.FitPreferencesEnabled && saved.FitPreference != "" {
		s.fitPreference = saved.FitPreference
	}
	if s.chart.StitchingNotesEnabled && saved.StitchingNotes != "" {
		s.stitchingNotes = saved.StitchingNotes
	}
	s.scrollToTop = true
	return nil
}

// DeleteProfile deletes a saved profile and drops it from the list.
func (s *Session) DeleteProfile(ctx context.Context, id string) error {
	s.mu.Lock()
	if err := s.requireStep(StepPreviousProfiles); err != nil {
		s.mu.Unlock()
		return err
	}
	epoch, err := s.begin()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	err = s.deps.Profiles.DeleteProfile(ctx, s.shop, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish(epoch) {
		return ErrStale
	}
	if err != nil {
		s.lastErr = err
		return err
	}
	s.lastErr = nil
	s.profiles = ectolinq.Filter(s.profiles, func(p storefront.Template) bool {
		return p.ID != id
	})
	return nil
}

// ClosePreviousProfiles returns to details.
func (s *Session) ClosePreviousProfiles() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.moveTo(StepDetails); err != nil {
		return err
	}
	s.loadingProfiles = false
	return nil
}

// AddToCart re-validates the form and adds the order to the cart. On failure
// the session stays on review with its input and LastError set.
func (s *Session) AddToCart(ctx context.Context) error {
	s.mu.Lock()
	if err := s.requireStep(StepReview); err != nil {
		s.mu.Unlock()
		return err
	}
	if verrs := s.validate(); verrs != nil {
		s.mu.Unlock()
		return verrs
	}
	epoch, err := s.begin()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	measurements, names := s.measurements()
	fit := s.fitLabel()
	notes := ""
	if s.chart.StitchingNotesEnabled {
		notes = s.stitchingNotes
	}
	s.mu.Unlock()

	err = s.addToCart(ctx, measurements, names, fit, notes)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish(epoch) {
		return ErrStale
	}
	if err != nil {
		s.lastErr = err
		s.deps.Logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"shop":       s.shop,
			"product_id": s.productID,
		}).Warn("Failed to add measurements to cart")
		return err
	}
	s.lastErr = nil
	return s.moveTo(StepCompleted)
}

func (s *Session) addToCart(ctx context.Context, measurements map[string]*float64, names cart.NameLookup, fit, notes string) error {
	variantID := ""
	if s.deps.Variants != nil {
		id, err := s.deps.Variants.SelectedVariantID(ctx)
		if err != nil {
			return err
		}
		variantID = id
	}

	item, err := cart.BuildLineItem(variantID, measurements, names, fit, notes)
	if err != nil {
		return err
	}
	return s.deps.Cart.Add(ctx, item)
}

// measurements returns the parsed values and field names. Callers hold the lock.
func (s *Session) measurements() (map[string]*float64, cart.NameLookup) {
	measurements := make(map[string]*float64, len(s.fields))
	names := make(cart.NameLookup, len(s.fields))
	for _, field := range s.fields {
		names[field.ID] = field.Name
		if v, ok, err := ParseValue(s.values[field.ID]); err == nil && ok {
			measurements[field.ID] = &v
		} else {
			measurements[field.ID] = nil
		}
	}
	return measurements, names
}

// fitLabel returns the label of the selected fit option. Callers hold the lock.
func (s *Session) fitLabel() string {
	if !s.chart.FitPreferencesEnabled || s.fitPreference == "" {
		return ""
	}
	option := ectolinq.Find(s.chart.FitOptions(), func(o chart.FitOption) bool {
		return o.Key == s.fitPreference
	})
	if option.Label != "" {
		return option.Label
	}
	return s.fitPreference
}

func fitKeys(m *chart.Measurement) []string {
	return ectolinq.Map(m.FitOptions(), func(o chart.FitOption) string {
		return o.Key
	})
}
