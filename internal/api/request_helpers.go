package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/phrazzld/voicetask/internal/api/middleware"
	"github.com/phrazzld/voicetask/internal/domain"
	"github.com/phrazzld/voicetask/internal/domain/filter"
	"github.com/phrazzld/voicetask/internal/platform/logger"
	"github.com/phrazzld/voicetask/internal/service/auth"
)

// Pagination limits used when a handler is built without explicit ones.
const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

var dateParser = newDateParser()

func newDateParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// PageLimits bounds the limit query parameter.
type PageLimits struct {
	Default int
	Max     int
}

func (p PageLimits) normalized() PageLimits {
	if p.Default <= 0 {
		p.Default = defaultPageLimit
	}
	if p.Max < p.Default {
		p.Max = maxPageLimit
		if p.Max < p.Default {
			p.Max = p.Default
		}
	}
	return p
}

// requirePrincipal extracts the authenticated principal placed in the
// context by the auth middleware. It writes a 401 and returns false when
// the request is unauthenticated.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	principal, ok := middleware.GetPrincipal(r)
	if !ok {
		logger.FromContextOrDefault(r.Context(), slog.Default()).
			Warn("principal not found in request context")
		HandleAPIError(w, r, auth.ErrMissingToken, "")
		return domain.Principal{}, false
	}
	return principal, true
}

// getPathParam extracts a required, non-blank URL path parameter.
func getPathParam(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(chi.URLParam(r, name))
	if value == "" {
		return "", domain.NewValidationError(name, "is required", domain.ErrValidation)
	}
	return value, nil
}

// parsePagination reads skip and limit. A missing limit takes the default;
// a limit above the maximum is clamped.
func parsePagination(q url.Values, limits PageLimits) (skip, limit int, err error) {
	limits = limits.normalized()

	skip, err = parseNonNegative(q, "skip", 0)
	if err != nil {
		return 0, 0, err
	}
	limit, err = parseNonNegative(q, "limit", limits.Default)
	if err != nil {
		return 0, 0, err
	}
	if limit > limits.Max {
		limit = limits.Max
	}
	return skip, limit, nil
}

func parseNonNegative(q url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer", domain.ErrValidation)
	}
	if n < 0 {
		return 0, domain.NewValidationError(name, "must not be negative", domain.ErrValidation)
	}
	return n, nil
}

// parseSearchFilter builds a filter from query parameters. Tags may repeat
// or be comma separated. Relative dates such as "yesterday" in the created
// bounds resolve against now.
func parseSearchFilter(q url.Values, now time.Time) (filter.Filter, error) {
	f := filter.Filter{
		Keyword:  strings.TrimSpace(q.Get("keyword")),
		Priority: strings.TrimSpace(q.Get("priority")),
		Category: strings.TrimSpace(q.Get("category")),
		Owner:    strings.TrimSpace(q.Get("owner")),
	}

	if status := strings.TrimSpace(q.Get("status")); status != "" {
		s := domain.TaskStatus(status)
		if !s.Valid() {
			return filter.Filter{}, domain.NewValidationError("status", "must be a known status", domain.ErrInvalidStatus)
		}
		f.Status = s
	}

	var tags []string
	for _, raw := range q["tags"] {
		tags = append(tags, strings.Split(raw, ",")...)
	}
	if normalized := domain.NormalizeTags(tags); len(normalized) > 0 {
		f.Tags = normalized
	}

	var err error
	if f.CreatedAfter, err = parseCreatedBound("created_after", q.Get("created_after"), now); err != nil {
		return filter.Filter{}, err
	}
	if f.CreatedBefore, err = parseCreatedBound("created_before", q.Get("created_before"), now); err != nil {
		return filter.Filter{}, err
	}
	return f, nil
}

// parseCreatedBound normalizes a created_after or created_before value to
// the canonical timestamp layout. Full timestamps are reformatted, other
// values starting with a digit are compared as given, and anything else is
// read as a natural-language date.
func parseCreatedBound(field, raw string, now time.Time) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return domain.FormatTimestamp(t), nil
	}
	if unicode.IsDigit(rune(raw[0])) {
		return raw, nil
	}

	res, err := dateParser.Parse(raw, now)
	if err != nil {
		return "", domain.NewValidationError(field, "could not be parsed as a date", domain.ErrValidation)
	}
	if res == nil {
		return "", domain.NewValidationError(field, "must be a timestamp or a date expression", domain.ErrValidation)
	}
	return domain.FormatTimestamp(res.Time), nil
}
