// Package request captures the customization details a buyer sends after checkout.
package request

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/fjod/inviteu/internal/domain"
	"github.com/fjod/inviteu/internal/logger"
	"github.com/fjod/inviteu/internal/notify"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrMissingFields = errors.New("required fields are missing")

// MissingFieldsError lists the required fields left empty, in form order.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingFields, strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrMissingFields
}

// Form is the request as typed by the buyer.
type Form struct {
	CoupleNames      string `json:"coupleNames" validate:"required"`
	EventDate        string `json:"eventDate" validate:"required"`
	EventLocation    string `json:"eventLocation" validate:"required"`
	SpecialMessage   string `json:"specialMessage,omitempty"`
	ContactEmail     string `json:"contactEmail" validate:"required"`
	WhatsappNumber   string `json:"whatsappNumber" validate:"required"`
	DesiredSubdomain string `json:"desiredSubdomain,omitempty"`
}

// Log is the append-only request record store.
type Log interface {
	Append(ctx context.Context, record domain.RequestRecord) error
	List(ctx context.Context) ([]domain.RequestRecord, error)
}

// Auth supplies the signed-in user, if any.
type Auth interface {
	CurrentUserID() (string, bool)
}

type Publisher interface {
	PublishRequestSubmitted(ctx context.Context, record domain.RequestRecord) error
}

type Service struct {
	log       Log
	validate  *validator.Validate
	publisher Publisher
	notifier  notify.Notifier
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(log Log, opts ...Option) *Service {
	s := &Service{
		log:      log,
		validate: newValidator(),
		notifier: notify.Nop{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates the form and appends it to the request log.
// auth may be nil for anonymous submissions.
func (s *Service) Submit(ctx context.Context, auth Auth, form Form) (domain.RequestRecord, error) {
	log := logger.WithContext(ctx, s.logger)

	form = form.trimmed()
	if missing := s.missing(form); len(missing) > 0 {
		s.notifier.Notify("Required fields: "+strings.Join(missing, ", "), notify.SeverityError)
		return domain.RequestRecord{}, &MissingFieldsError{Fields: missing}
	}

	record := domain.RequestRecord{
		ID:               uuid.New(),
		CoupleNames:      form.CoupleNames,
		EventDate:        form.EventDate,
		EventLocation:    form.EventLocation,
		SpecialMessage:   form.SpecialMessage,
		ContactEmail:     form.ContactEmail,
		WhatsappNumber:   form.WhatsappNumber,
		DesiredSubdomain: form.DesiredSubdomain,
		SubmittedAt:      s.now().UTC(),
	}
	if auth != nil {
		if userID, ok := auth.CurrentUserID(); ok {
			record.UserID = userID
		}
	}

	if err := s.log.Append(ctx, record); err != nil {
		s.notifier.Notify("The request could not be sent", notify.SeverityError)
		return domain.RequestRecord{}, fmt.Errorf("save request: %w", err)
	}
	log.Info("request submitted", zap.String("request_id", record.ID.String()))

	if s.publisher != nil {
		if err := s.publisher.PublishRequestSubmitted(ctx, record); err != nil {
			log.Warn("request event not published", zap.String("request_id", record.ID.String()), zap.Error(err))
		}
	}
	return record, nil
}

// Notifying returns a Service sharing s's log and publisher that sends user messages to n.
func (s *Service) Notifying(n notify.Notifier) *Service {
	clone := *s
	clone.notifier = n
	return &clone
}

func (s *Service) List(ctx context.Context) ([]domain.RequestRecord, error) {
	return s.log.List(ctx)
}

func (s *Service) missing(form Form) []string {
	err := s.validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}

func (f Form) trimmed() Form {
	return Form{
		CoupleNames:      strings.TrimSpace(f.CoupleNames),
		EventDate:        strings.TrimSpace(f.EventDate),
		EventLocation:    strings.TrimSpace(f.EventLocation),
		SpecialMessage:   strings.TrimSpace(f.SpecialMessage),
		ContactEmail:     strings.TrimSpace(f.ContactEmail),
		WhatsappNumber:   strings.TrimSpace(f.WhatsappNumber),
		DesiredSubdomain: strings.TrimSpace(f.DesiredSubdomain),
	}
}

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
