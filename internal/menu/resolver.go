package menu

import (
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Proton-105/astro-bot/internal/domain"
	"github.com/Proton-105/astro-bot/internal/message"
)

const breadcrumbSeparator = " › "

// Minimum query lengths for the looser match kinds.
const (
	minPrefixRunes    = 2
	minSubstringRunes = 3
)

var (
	// ErrAtRoot is returned by Back when there is nothing to pop.
	ErrAtRoot = errors.New("menu: already at root")
	// ErrNoMatch is returned when free text matches no node.
	ErrNoMatch = errors.New("menu: no match")
	// ErrFavoritesFull is returned when the favorites list is at capacity.
	ErrFavoritesFull = errors.New("menu: favorites full")
	// ErrNotFavoritable is returned for nodes that cannot be saved as shortcuts.
	ErrNotFavoritable = errors.New("menu: node cannot be a favorite")
)

// Options configures a Resolver.
type Options struct {
	DisplayThreshold int
	MaxFavorites     int
	MaxStackDepth    int
	Now              func() time.Time
}

// Resolver implements navigation over an immutable catalog. It never mutates
// its inputs: every operation returns a new stack.
type Resolver struct {
	catalog      *Catalog
	guards       *GuardRegistry
	threshold    int
	maxFavorites int
	maxDepth     int
	now          func() time.Time
}

func NewResolver(catalog *Catalog, guards *GuardRegistry, opts Options) *Resolver {
	// Children past the list row limit could not be shown, so larger menus must search.
	if opts.DisplayThreshold <= 0 || opts.DisplayThreshold > message.MaxListRows {
		opts.DisplayThreshold = message.MaxListRows
	}
	if opts.MaxFavorites <= 0 {
		opts.MaxFavorites = 5
	}
	if opts.MaxStackDepth <= 0 {
		opts.MaxStackDepth = 12
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Resolver{
		catalog:      catalog,
		guards:       guards,
		threshold:    opts.DisplayThreshold,
		maxFavorites: opts.MaxFavorites,
		maxDepth:     opts.MaxStackDepth,
		now:          opts.Now,
	}
}

// Catalog returns the shared catalog.
func (r *Resolver) Catalog() *Catalog { return r.catalog }

// Home returns the root-only stack.
func (r *Resolver) Home() []string {
	return []string{r.catalog.Root()}
}

// Enter validates id and its guards against profile and returns the stack with id pushed,
// so Back on the result restores the input. Entering the root is Home. A push past the
// depth bound collapses to the catalog path of id.
// On failure the returned stack is the input, unchanged.
func (r *Resolver) Enter(stack []string, profile *domain.UserProfile, id string) ([]string, *Node, error) {
	node, ok := r.catalog.Get(id)
	if !ok {
		return stack, nil, ErrUnknownNode
	}
	if v := r.guards.Check(node, profile, r.now()); v != nil {
		return stack, node, v
	}

	if id == r.catalog.Root() {
		return r.Home(), node, nil
	}

	next := make([]string, 0, len(stack)+1)
	next = append(next, stack...)
	if len(next) == 0 {
		next = append(next, r.catalog.Root())
	}
	next = append(next, id)

	if len(next) > r.maxDepth {
		next = r.catalog.PathTo(id)
	}
	return next, node, nil
}

// Back pops one level.
func (r *Resolver) Back(stack []string) ([]string, error) {
	if len(stack) <= 1 {
		return r.Home(), ErrAtRoot
	}
	return append([]string(nil), stack[:len(stack)-1]...), nil
}

// Breadcrumbs renders the titles along the stack.
func (r *Resolver) Breadcrumbs(stack []string) string {
	titles := make([]string, 0, len(stack))
	for _, id := range stack {
		if n, ok := r.catalog.Get(id); ok {
			titles = append(titles, n.Title)
		}
	}
	return strings.Join(titles, breadcrumbSeparator)
}

// NeedsSearch reports whether the node has too many children for a flat list.
func (r *Resolver) NeedsSearch(n *Node) bool {
	return n != nil && len(n.Children) > r.threshold
}

// DisplayThreshold returns the flat-list limit.
func (r *Resolver) DisplayThreshold() int { return r.threshold }

// ResolveByFreeText matches text against every node below the root.
func (r *Resolver) ResolveByFreeText(text string) (*Node, error) {
	return r.bestMatch(r.catalog.order, text, true)
}

// SearchChildren ranks the children of parent against text.
func (r *Resolver) SearchChildren(parent, text string) []*Node {
	return r.rank(r.catalog.Children(parent), text, true)
}

// MatchChild returns the child of parent that text names, using titles only.
func (r *Resolver) MatchChild(parent, text string) (*Node, error) {
	return r.bestMatch(r.catalog.Children(parent), text, false)
}

func (r *Resolver) bestMatch(candidates []*Node, text string, withKeywords bool) (*Node, error) {
	ranked := r.rank(candidates, text, withKeywords)
	if len(ranked) == 0 {
		return nil, ErrNoMatch
	}
	return ranked[0], nil
}

type matchKind int

const (
	matchNone matchKind = iota
	matchSubstring
	matchPrefix
	matchExact
)

func (r *Resolver) rank(candidates []*Node, text string, withKeywords bool) []*Node {
	q := normalizeQuery(text)
	if q == "" {
		return nil
	}

	// Any title hit outranks every keyword-only hit.
	type scored struct {
		node    *Node
		kind    matchKind
		byTitle bool
	}
	var hits []scored
	for _, n := range candidates {
		if n.ID == r.catalog.Root() {
			continue
		}
		if k := matchText(n.Title, q); k != matchNone {
			hits = append(hits, scored{node: n, kind: k, byTitle: true})
			continue
		}
		if !withKeywords {
			continue
		}
		best := matchNone
		for _, kw := range n.Keywords {
			if k := matchText(kw, q); k > best {
				best = k
			}
		}
		if best != matchNone {
			hits = append(hits, scored{node: n, kind: best})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].byTitle != hits[j].byTitle {
			return hits[i].byTitle
		}
		if hits[i].kind != hits[j].kind {
			return hits[i].kind > hits[j].kind
		}
		return hits[i].node.order < hits[j].node.order
	})

	out := make([]*Node, len(hits))
	for i, h := range hits {
		out[i] = h.node
	}
	return out
}

func matchText(candidate, q string) matchKind {
	c := normalizeQuery(candidate)
	n := utf8.RuneCountInString(q)
	switch {
	case c == q:
		return matchExact
	case n >= minPrefixRunes && strings.HasPrefix(c, q):
		return matchPrefix
	case n >= minSubstringRunes && strings.Contains(c, q):
		return matchSubstring
	default:
		return matchNone
	}
}

func normalizeQuery(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// AddFavorite returns favorites with id appended. Adding an existing favorite is a no-op.
func (r *Resolver) AddFavorite(favorites []string, id string) ([]string, error) {
	n, ok := r.catalog.Get(id)
	if !ok {
		return favorites, ErrUnknownNode
	}
	if n.ID == r.catalog.Root() {
		return favorites, ErrNotFavoritable
	}
	for _, f := range favorites {
		if f == id {
			return favorites, nil
		}
	}
	if len(favorites) >= r.maxFavorites {
		return favorites, ErrFavoritesFull
	}
	return append(append([]string(nil), favorites...), id), nil
}

// RemoveFavorite returns favorites without id.
func (r *Resolver) RemoveFavorite(favorites []string, id string) []string {
	out := make([]string, 0, len(favorites))
	for _, f := range favorites {
		if f != id {
			out = append(out, f)
		}
	}
	return out
}

// ValidFavorites drops ids no longer present in the catalog.
func (r *Resolver) ValidFavorites(favorites []string) []*Node {
	out := make([]*Node, 0, len(favorites))
	for _, id := range favorites {
		if n, ok := r.catalog.Get(id); ok {
			out = append(out, n)
		}
	}
	return out
}
