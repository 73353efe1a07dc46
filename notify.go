package auth

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// GenericErrorMessage is shown when the backend sent nothing usable.
const GenericErrorMessage = "Something went wrong. Please try again."

// NotificationLevel is the severity of a transient notification.
type NotificationLevel string

const (
	NotifySuccess NotificationLevel = "success"
	NotifyError   NotificationLevel = "error"
)

// Notification is a transient, user visible message.
type Notification struct {
	Level    NotificationLevel
	Message  string
	Kind     ErrorKind
	TextCode string
	At       time.Time
}

// Notifier shows notifications.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) {
	if f != nil {
		f(n)
	}
}

// NotificationQueue is an in-memory Notifier the UI drains.
type NotificationQueue struct {
	mu    sync.Mutex
	items []Notification
}

func (q *NotificationQueue) Notify(n Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
}

// Drain returns and clears pending notifications.
func (q *NotificationQueue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// MutationBoundary is where every user triggered mutation ends up. Validation
// errors are returned for inline display and never notified; everything
// else becomes one transient notification. There is no retry.
type MutationBoundary struct {
	notifier Notifier
	logger   Logger
	now      func() time.Time
}

// NewMutationBoundary creates a boundary reporting to notifier.
func NewMutationBoundary(notifier Notifier) *MutationBoundary {
	if notifier == nil {
		notifier = NotifierFunc(nil)
	}
	_, logger := ResolveLogger("auth.mutations", nil, nil)
	return &MutationBoundary{notifier: notifier, logger: logger, now: time.Now}
}

func (b *MutationBoundary) WithLogger(logger Logger) *MutationBoundary {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Run executes fn. A non nil return is the validation error to show inline.
// success, when not empty, is notified after fn succeeds.
func (b *MutationBoundary) Run(ctx context.Context, name, success string, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil {
		if success != "" {
			b.notifier.Notify(Notification{Level: NotifySuccess, Message: success, At: b.now()})
		}
		return nil
	}

	if IsValidationError(err) && !isBackendRejection(err) {
		return err
	}

	b.Report(name, err)
	return nil
}

// Report turns err into an error notification.
func (b *MutationBoundary) Report(name string, err error) {
	if err == nil {
		return
	}

	n := Notification{
		Level:   NotifyError,
		Message: UserMessage(err),
		Kind:    KindOf(err),
		At:      b.now(),
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		n.TextCode = richErr.TextCode
		b.logger.Error("%s failed: %s [%s] %s", name, richErr.Message, richErr.Category, print.MaybePrettyJSON(richErr.Metadata))
	} else {
		b.logger.Error("%s failed: %v", name, err)
	}

	b.notifier.Notify(n)
}

// UserMessage is the backend supplied message when there is one, else the
// sentinel message for known errors, else a generic fallback.
func UserMessage(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return GenericErrorMessage
	}

	if richErr.Metadata != nil {
		if detail, ok := richErr.Metadata["detail"].(string); ok && detail != "" {
			return detail
		}
	}

	if KindOf(err) == KindNetwork || richErr.Category == goerrors.CategoryInternal || richErr.Message == "" {
		return GenericErrorMessage
	}
	return richErr.Message
}

// isBackendRejection separates a 400/422 from the backend, which is shown
// as a notification, from client side validation, which is shown inline.
func isBackendRejection(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return false
	}
	_, ok := richErr.Metadata["status"]
	return ok
}
