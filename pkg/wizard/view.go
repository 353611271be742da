package wizard

import (
	"time"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/fern/pkg/chart"
	"github.com/Ramsey-B/fern/pkg/storefront"
)

// FieldView is one measurement input as it should be drawn.
type FieldView struct {
	ID            string
	Name          string
	Required      bool
	Min           *float64
	Max           *float64
	Unit          chart.Unit
	Instructions  string
	GuideImageURL string
	Value         string
	Error         string
}

// ProfileView is a saved profile in the previous profiles list.
type ProfileView struct {
	ID        string
	Name      string
	CreatedAt *time.Time
}

// View is a snapshot of the session for a renderer. It shares no state with
// the session.
type View struct {
	Step         Step
	Epoch        uint64
	Shop         string
	ProductID    string
	ProductName  string
	TemplateName string

	Unit   chart.Unit
	Fields []FieldView
	Guide  *FieldView
	Focus  string

	FitPreferencesEnabled bool
	FitOptions            []chart.FitOption
	FitPreference         string
	StitchingNotesEnabled bool
	StitchingNotes        string

	Dirty           bool
	PendingClose    bool
	ScrollToTop     bool
	Busy            bool
	LoadingProfiles bool
	Profiles        []ProfileView
	SavedProfile    *ProfileView

	Error string
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Step:            s.step,
		Epoch:           s.epoch,
		Shop:            s.shop,
		ProductID:       s.productID,
		ProductName:     s.productName,
		Unit:            s.unit,
		Focus:           s.focus,
		FitPreference:   s.fitPreference,
		StitchingNotes:  s.stitchingNotes,
		Dirty:           s.dirty(),
		PendingClose:    s.pendingClose,
		ScrollToTop:     s.scrollToTop,
		Busy:            s.inFlight,
		LoadingProfiles: s.loadingProfiles,
		Profiles:        ectolinq.Map(s.profiles, profileView),
	}
	if s.lastErr != nil {
		v.Error = s.lastErr.Error()
	}
	if s.savedProfile != nil {
		saved := profileView(*s.savedProfile)
		v.SavedProfile = &saved
	}

	// a failed load renders only the error panel
	if s.chart == nil {
		v.Fields = []FieldView{}
		return v
	}

	if s.template != nil {
		v.TemplateName = s.template.Name
	}
	v.FitPreferencesEnabled = s.chart.FitPreferencesEnabled
	if v.FitPreferencesEnabled {
		v.FitOptions = s.chart.FitOptions()
	}
	v.StitchingNotesEnabled = s.chart.StitchingNotesEnabled

	v.Fields = ectolinq.Map(s.fields, s.fieldView)
	if s.guideField != "" {
		if field, ok := s.field(s.guideField); ok {
			guide := s.fieldView(field)
			v.Guide = &guide
		}
	}
	return v
}

// fieldView labels every field with the session unit. The chart's own field
// unit only seeds the session unit on load.
func (s *Session) fieldView(field chart.MeasurementField) FieldView {
	fv := FieldView{
		ID:           field.ID,
		Name:         field.Name,
		Required:     field.Required,
		Unit:         s.unit,
		Instructions: field.Instructions(),
		Value:        s.values[field.ID],
		Error:        s.errors[field.ID],
	}
	if field.Min != nil {
		lo := *field.Min
		fv.Min = &lo
	}
	if field.Max != nil {
		hi := *field.Max
		fv.Max = &hi
	}
	if ref := field.GuideImageRef(); ref != "" {
		fv.GuideImageURL = s.deps.Normalizer.Key(ref)
	}
	return fv
}

func profileView(t storefront.Template) ProfileView {
	return ProfileView{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt}
}
