package resolver

import (
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"
)

const (
	sigilEnv    = "@env"
	sigilFormat = "@format"
	sigilMath   = "@math"

	defaultMaxDepth = 16
)

var placeholderPattern = regexp.MustCompile(`\{(.*?)\}`)

// Resolver resolves tokens in configuration documents. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	lookupEnv func(string) (string, bool)
	maxDepth  int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLookupEnv overrides the environment lookup, primarily for tests.
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(r *Resolver) {
		r.lookupEnv = lookup
	}
}

// WithMaxDepth limits how deeply @format placeholders may nest.
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		r.maxDepth = depth
	}
}

// New creates a Resolver reading from the process environment.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		lookupEnv: os.LookupEnv,
		maxDepth:  defaultMaxDepth,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.lookupEnv == nil {
		r.lookupEnv = os.LookupEnv
	}
	if r.maxDepth <= 0 {
		r.maxDepth = defaultMaxDepth
	}
	return r
}

var defaultResolver = New()

// Resolve resolves doc using the process environment.
func Resolve(doc map[string]any) (map[string]any, error) {
	return defaultResolver.Resolve(doc)
}

// ResolveValue resolves a single value using the process environment.
func ResolveValue(value any) (any, error) {
	return defaultResolver.ResolveValue(value)
}

// Resolve returns a copy of doc with every token resolved. Nested mappings
// are resolved recursively; doc itself is never modified. On failure no
// document is returned and the error names the offending key path.
func (r *Resolver) Resolve(doc map[string]any) (map[string]any, error) {
	return r.resolveMap(doc, "")
}

// ResolveValue resolves a single value. Values that are not strings, and
// strings without a recognised sigil, are returned unchanged.
func (r *Resolver) ResolveValue(value any) (any, error) {
	return r.resolveValue(value, 0)
}

func (r *Resolver) resolveMap(src map[string]any, path string) (map[string]any, error) {
	if src == nil {
		return nil, nil
	}

	out := make(map[string]any, len(src))
	// Sorted so the reported failure is stable when several keys are bad.
	for _, key := range slices.Sorted(maps.Keys(src)) {
		keyPath := key
		if path != "" {
			keyPath = path + "." + key
		}

		value := src[key]
		if nested, ok := value.(map[string]any); ok {
			resolved, err := r.resolveMap(nested, keyPath)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
			continue
		}

		resolved, err := r.resolveValue(value, 0)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", keyPath, err)
		}
		out[key] = resolved
	}
	return out, nil
}

func (r *Resolver) resolveValue(value any, depth int) (any, error) {
	token, ok := value.(string)
	if !ok {
		return value, nil
	}

	var (
		resolved any
		err      error
	)
	switch {
	case strings.HasPrefix(token, sigilEnv):
		resolved, err = r.resolveEnv(token)
	case strings.HasPrefix(token, sigilFormat):
		resolved, err = r.resolveFormat(token, depth)
	case strings.HasPrefix(token, sigilMath):
		resolved, err = resolveMath(token)
	default:
		return token, nil
	}
	if err != nil {
		return nil, &ResolutionError{Token: token, Err: err}
	}
	return resolved, nil
}

// resolveEnv handles "@env NAME" and "@env NAME,default". Only the first
// comma separates the default, so defaults may contain commas. An unset
// variable without a default resolves to nil.
func (r *Resolver) resolveEnv(token string) (any, error) {
	body := strings.TrimSpace(strings.TrimPrefix(token, sigilEnv))
	name, fallback, hasFallback := strings.Cut(body, ",")
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: %s requires a variable name", ErrTokenFormat, sigilEnv)
	}

	if value, ok := r.lookupEnv(name); ok {
		return value, nil
	}
	if hasFallback {
		return strings.TrimSpace(fallback), nil
	}
	return nil, nil
}

// resolveFormat substitutes every {placeholder} with its body resolved as a
// token. Placeholders that resolve to nil are left in place.
func (r *Resolver) resolveFormat(token string, depth int) (any, error) {
	if depth >= r.maxDepth {
		return nil, fmt.Errorf("%w (%d)", ErrMaxDepth, r.maxDepth)
	}

	text := strings.TrimSpace(strings.TrimPrefix(token, sigilFormat))
	seen := make(map[string]struct{})
	result := text
	for _, match := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		inner := match[1]
		if _, ok := seen[inner]; ok {
			continue
		}
		seen[inner] = struct{}{}

		resolved, err := r.resolveValue(inner, depth+1)
		if err != nil {
			return nil, fmt.Errorf("%w: placeholder {%s}: %w", ErrTokenFormat, inner, err)
		}
		if resolved == nil {
			continue
		}
		result = strings.ReplaceAll(result, "{"+inner+"}", formatScalar(resolved))
	}
	return result, nil
}

func resolveMath(token string) (any, error) {
	expr := strings.TrimSpace(strings.TrimPrefix(token, sigilMath))
	return Eval(expr)
}
