// Package dedup collapses near-duplicate articles into groups using
// token-set similarity over normalized titles.
package dedup

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/jmadden/news-digest/internal/config"
	"github.com/jmadden/news-digest/internal/feed"
)

// commonPrefixes are wire-style title prefixes ignored when building
// similarity signatures.
var commonPrefixes = []string{
	"breaking:",
	"update:",
	"updated:",
	"exclusive:",
	"just in:",
	"developing:",
	"watch:",
	"live:",
	"opinion:",
	"analysis:",
	"review:",
}

// stopwords carry no story identity and are excluded from signatures.
var stopwords = map[string]struct{}{}

func init() {
	words := []string{
		"a", "an", "the", "and", "or", "but", "not", "no", "so", "if",
		"of", "to", "in", "on", "for", "by", "with", "at", "from", "as",
		"into", "over", "under", "about", "after", "before", "than", "then",
		"is", "are", "was", "were", "be", "been", "being",
		"has", "have", "had", "will", "would", "can", "could",
		"it", "its", "this", "that", "these", "those",
		"his", "her", "their", "our", "your",
	}
	for _, w := range words {
		stopwords[w] = struct{}{}
	}
}

// Group is one cluster of near-duplicate articles. Members are ordered by
// the representative election comparator, so Members[0] is always the
// representative.
type Group struct {
	Representative feed.Article
	Members        []feed.Article
}

// Grouper partitions articles into duplicate groups.
type Grouper struct {
	threshold float64
	window    time.Duration
	rank      map[string]int // source name -> configured priority
	unranked  int
}

// NewGrouper creates a Grouper. sourcePriority lists feed names in
// configured order; earlier feeds win representative ties.
func NewGrouper(cfg config.DedupConfig, sourcePriority []string) *Grouper {
	rank := make(map[string]int, len(sourcePriority))
	for i, name := range sourcePriority {
		if _, ok := rank[name]; !ok {
			rank[name] = i
		}
	}
	return &Grouper{
		threshold: cfg.Similarity,
		window:    cfg.Window(),
		rank:      rank,
		unranked:  len(sourcePriority),
	}
}

// Group partitions articles into duplicate groups. Every input article
// lands in exactly one group. now anchors undated articles: they are
// treated as published at the run start for windowing and ordering.
//
// Similar pairs merge transitively, so a group may span articles that are
// not pairwise similar. Pairs whose effective times differ by more than
// the window are never compared. Output is ordered by representative
// effective time, newest first, then representative ID.
func (g *Grouper) Group(articles []feed.Article, now time.Time) []Group {
	if len(articles) == 0 {
		return nil
	}

	sigs := make([][]string, len(articles))
	for i, a := range articles {
		sigs[i] = signature(a)
	}

	// Walk articles in time order so the window check is a forward scan.
	order := make([]int, len(articles))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		tx := articles[order[x]].PublishedOr(now)
		ty := articles[order[y]].PublishedOr(now)
		if !tx.Equal(ty) {
			return tx.Before(ty)
		}
		return articles[order[x]].ID < articles[order[y]].ID
	})

	uf := newUnionFind(len(articles))
	for wi := 0; wi < len(order); wi++ {
		i := order[wi]
		ti := articles[i].PublishedOr(now)
		for wj := wi + 1; wj < len(order); wj++ {
			j := order[wj]
			if articles[j].PublishedOr(now).Sub(ti) > g.window {
				break
			}
			if jaccard(sigs[i], sigs[j]) >= g.threshold {
				uf.union(i, j)
			}
		}
	}

	byRoot := make(map[int][]int)
	for i := range articles {
		root := uf.find(i)
		byRoot[root] = append(byRoot[root], i)
	}

	groups := make([]Group, 0, len(byRoot))
	for _, members := range byRoot {
		groups = append(groups, g.buildGroup(articles, members, now))
	}

	sort.Slice(groups, func(x, y int) bool {
		tx := groups[x].Representative.PublishedOr(now)
		ty := groups[y].Representative.PublishedOr(now)
		if !tx.Equal(ty) {
			return tx.After(ty)
		}
		return groups[x].Representative.ID < groups[y].Representative.ID
	})
	return groups
}

// buildGroup orders members by the election comparator: latest effective
// time first, then source priority, then smallest ID.
func (g *Grouper) buildGroup(articles []feed.Article, idxs []int, now time.Time) Group {
	members := make([]feed.Article, 0, len(idxs))
	for _, i := range idxs {
		members = append(members, articles[i])
	}
	sort.Slice(members, func(x, y int) bool {
		tx := members[x].PublishedOr(now)
		ty := members[y].PublishedOr(now)
		if !tx.Equal(ty) {
			return tx.After(ty)
		}
		rx, ry := g.sourceRank(members[x].Source), g.sourceRank(members[y].Source)
		if rx != ry {
			return rx < ry
		}
		return members[x].ID < members[y].ID
	})
	return Group{Representative: members[0], Members: members}
}

func (g *Grouper) sourceRank(name string) int {
	if r, ok := g.rank[name]; ok {
		return r
	}
	return g.unranked
}

// signature builds the sorted unique token set compared for similarity.
// Only the title feeds the signature; snippets are excluded.
func signature(a feed.Article) []string {
	text := normalizeText(a.Title)
	seen := make(map[string]struct{})
	var tokens []string
	for _, tok := range strings.Fields(text) {
		if _, drop := stopwords[tok]; drop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}

// normalizeText applies NFKC folding, lowercases, strips one wire prefix,
// and replaces punctuation with spaces.
func normalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	for _, prefix := range commonPrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
			break
		}
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// jaccard computes intersection over union for two sorted token sets.
// Empty signatures never match anything, including each other.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// unionFind is a disjoint set over article indices with path halving and
// union by size.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	size := make([]int, n)
	for i := range parent {
		parent[i] = i
		size[i] = 1
	}
	return &unionFind{parent: parent, size: size}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.size[ra] < u.size[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	u.size[ra] += u.size[rb]
}
