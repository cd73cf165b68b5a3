package service

import (
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/wikipulse/wikipulse/internal/classify"
	"github.com/wikipulse/wikipulse/internal/metrics"
	"github.com/wikipulse/wikipulse/internal/model"
	"github.com/wikipulse/wikipulse/internal/storage/pagestore"
	"github.com/wikipulse/wikipulse/internal/validation"
)

// Discard reasons for the ingest metrics.
const (
	discardInvalid   = "invalid"
	discardProject   = "project"
	discardNamespace = "namespace"
	discardFixup     = "fixup"
)

// deletedTitleRe pulls the deleted page title out of a free-text log
// comment when the log parameters carry no explicit target. The stream
// HTML-escapes quotes, hence the &quot; entities.
var deletedTitleRe = regexp.MustCompile(`&quot;\[\[(.*)\]\]&quot;|&quot;(.*)&quot;`)

// AggregationService folds classified stream events into per-page running
// state. It consumes one event at a time; each application runs to
// completion before the next, so records never see interleaved mutations.
type AggregationService struct {
	store     *pagestore.Store
	validator *validation.Validator
	metrics   *metrics.Metrics
	logger    *zap.Logger
	project   string

	// notify is invoked with a copy of the post-mutation record after
	// every applied edit.
	notify func(page *model.PageRecord)
}

// NewAggregationService creates a new aggregation service. project filters
// events by source wiki; "*" admits everything.
func NewAggregationService(store *pagestore.Store, project string, m *metrics.Metrics, logger *zap.Logger) *AggregationService {
	return &AggregationService{
		store:     store,
		validator: validation.NewValidator(),
		metrics:   m,
		logger:    logger,
		project:   project,
	}
}

// SetNotifyFunc registers the listener invoked after each applied edit. The
// listener always sees the post-mutation record.
func (s *AggregationService) SetNotifyFunc(fn func(page *model.PageRecord)) {
	s.notify = fn
}

// HandleEvent runs one raw stream event through validation, the filters,
// and either the control path or edit aggregation. It never fails:
// malformed events are counted and dropped.
func (s *AggregationService) HandleEvent(ev *model.RecentChange) {
	s.metrics.EventsReceivedTotal.Inc()

	if err := s.validator.ValidateEvent(ev); err != nil {
		s.metrics.EventsDiscardedTotal.WithLabelValues(discardInvalid).Inc()
		s.logger.Debug("Discarded invalid event", zap.Error(err))
		return
	}

	if !s.matchesProject(ev) {
		s.metrics.EventsDiscardedTotal.WithLabelValues(discardProject).Inc()
		return
	}

	// Only the main content namespace is tracked.
	if ev.Namespace != 0 {
		s.metrics.EventsDiscardedTotal.WithLabelValues(discardNamespace).Inc()
		return
	}

	if classify.IsFixupEdit(ev.Comment) {
		s.metrics.EventsDiscardedTotal.WithLabelValues(discardFixup).Inc()
		return
	}

	if ev.LogType != "" {
		s.handleLogEvent(ev)
		return
	}

	s.applyEdit(ev)
}

// applyEdit folds one content edit into the page record and emits the
// post-mutation notification.
func (s *AggregationService) applyEdit(ev *model.RecentChange) {
	isRevert := classify.IsRevertEdit(ev.Comment)
	isBot := classify.IsBotEdit(ev)
	delta := int64(ev.Length.New - ev.Length.Old)
	flags := classify.ScanCommentFlags(ev.Comment)

	updated := s.store.Update(ev.Title, ev.Wiki, func(p *model.PageRecord) {
		if ev.Type == model.TypeNew {
			p.IsNew = true
		}

		switch {
		case isRevert:
			// Reverts are counted apart from edits but always move
			// the byte total, bot or not.
			p.Reverts++
			p.BytesChanged += delta
		case !isBot:
			p.Edits++
			p.BytesChanged += delta
		}

		// Comment signals are raised regardless of bot or revert status.
		if flags.Notability {
			p.NotabilityFlags++
		}
		if flags.Volatility {
			p.VolatileFlags++
		}

		// Authorship is attributed only to ordinary human edits.
		if !isBot && !isRevert {
			if classify.IsAnonymousEditor(ev.User) {
				p.AnonEdits++
				p.Anons[ev.User] = struct{}{}
			} else {
				p.Contributors[ev.User] = struct{}{}
			}
			p.Distribution[ev.User]++
		}

		p.Updated = time.Now()
	})

	s.metrics.EditsAppliedTotal.Inc()
	if isRevert {
		s.metrics.RevertsTotal.Inc()
	}
	if isBot {
		s.metrics.BotEditsTotal.Inc()
	}

	if s.notify != nil {
		s.notify(updated)
	}
}

// handleLogEvent applies a structural (log) action: rename, protect, or
// best-effort delete. Log events never reach edit aggregation.
func (s *AggregationService) handleLogEvent(ev *model.RecentChange) {
	s.metrics.ControlEventsTotal.WithLabelValues(ev.LogAction).Inc()

	switch ev.LogAction {
	case model.LogActionMove:
		target := ev.LogParams.Target
		if target == "" {
			return
		}
		s.store.Rename(ev.Title, ev.Wiki, target)

	case model.LogActionProtect:
		s.store.Protect(ev.Title, ev.Wiki)

	case model.LogActionDelete:
		if !ev.LogParams.Empty() {
			return
		}
		title := extractDeletedTitle(ev.LogActionComment)
		if title == "" {
			// Deletion detection is best-effort; an unparseable
			// comment is silently ignored.
			return
		}
		s.logger.Debug("Dropping deleted page",
			zap.String("title", title),
			zap.String("wiki", ev.Wiki))
		s.store.Drop(title, ev.Wiki)
	}
}

// matchesProject reports whether the event's source wiki passes the
// configured project filter. "*" admits all, "*.suffix" matches by server
// name suffix, anything else matches the server name or wiki token exactly.
func (s *AggregationService) matchesProject(ev *model.RecentChange) bool {
	switch {
	case s.project == "" || s.project == "*":
		return true
	case len(s.project) > 1 && s.project[0] == '*':
		suffix := s.project[1:]
		return len(ev.ServerName) >= len(suffix) && ev.ServerName[len(ev.ServerName)-len(suffix):] == suffix
	default:
		return ev.ServerName == s.project || ev.Wiki == s.project
	}
}

func extractDeletedTitle(comment string) string {
	m := deletedTitleRe.FindStringSubmatch(comment)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}
