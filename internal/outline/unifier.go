package outline

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"gopherai-study/internal/model"
)

const defaultSimilarityThreshold = 0.8

type UnifyConfig struct {
	SimilarityThreshold float64
	// Transitive groups the closure of the similarity relation instead of
	// comparing each candidate against the group seed only.
	Transitive bool
	NewGroupID func() string
}

func DefaultUnifyConfig() UnifyConfig {
	return UnifyConfig{SimilarityThreshold: defaultSimilarityThreshold}
}

type flatSection struct {
	model.Section
	document string
}

// Unify merges the outlines of every document in a session into one
// deduplicated outline. It is recomputed from scratch on every call; the
// result depends only on the set of outlines passed in, apart from group ids.
func Unify(outlines []model.DocumentOutline, cfg UnifyConfig) []model.UnifiedSection {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = defaultSimilarityThreshold
	}
	if cfg.NewGroupID == nil {
		cfg.NewGroupID = uuid.NewString
	}

	ordered := make([]model.DocumentOutline, len(outlines))
	copy(ordered, outlines)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Filename != ordered[j].Filename {
			return ordered[i].Filename < ordered[j].Filename
		}
		return ordered[i].ContentFingerprint < ordered[j].ContentFingerprint
	})

	var flat []flatSection
	for i := range ordered {
		for _, s := range ordered[i].SectionList() {
			if s.DocumentName == "" {
				s.DocumentName = ordered[i].Filename
			}
			flat = append(flat, flatSection{Section: s, document: ordered[i].ContentFingerprint})
		}
	}

	var groups [][]int
	if cfg.Transitive {
		groups = closureGroups(flat, cfg.SimilarityThreshold)
	} else {
		groups = seedGroups(flat, cfg.SimilarityThreshold)
	}

	unified := make([]model.UnifiedSection, 0, len(groups))
	for _, g := range groups {
		rep := model.UnifiedSection{
			Section:         flat[g[0]].Section,
			RelatedSections: []model.RelatedSection{},
		}
		if len(g) > 1 {
			rep.Grouped = true
			rep.GroupID = cfg.NewGroupID()
			for _, idx := range g[1:] {
				m := flat[idx]
				rep.RelatedSections = append(rep.RelatedSections, model.RelatedSection{
					ID:           m.ID,
					Title:        m.Title,
					Level:        m.Level,
					PageNumber:   m.PageNumber,
					DocumentName: m.DocumentName,
				})
			}
		}
		unified = append(unified, rep)
	}

	sort.SliceStable(unified, func(i, j int) bool {
		pi, pj := pageKey(unified[i].PageNumber), pageKey(unified[j].PageNumber)
		if pi != pj {
			return pi < pj
		}
		return unified[i].Level < unified[j].Level
	})
	return unified
}

// seedGroups compares every untouched section against the seed of the group
// being built. The relation is not closed: A~B and B~C with A!~C leaves C out
// of A's group.
func seedGroups(flat []flatSection, threshold float64) [][]int {
	touched := make([]bool, len(flat))
	var groups [][]int
	for i := range flat {
		if touched[i] {
			continue
		}
		touched[i] = true
		group := []int{i}
		docs := map[string]struct{}{flat[i].document: {}}
		for j := i + 1; j < len(flat); j++ {
			if touched[j] {
				continue
			}
			if _, ok := docs[flat[j].document]; ok {
				continue
			}
			if TitleSimilarity(flat[i].Title, flat[j].Title) >= threshold {
				touched[j] = true
				docs[flat[j].document] = struct{}{}
				group = append(group, j)
			}
		}
		groups = append(groups, group)
	}
	return groups
}

func closureGroups(flat []flatSection, threshold float64) [][]int {
	parent := make([]int, len(flat))
	docs := make([]map[string]struct{}, len(flat))
	for i := range parent {
		parent[i] = i
		docs[i] = map[string]struct{}{flat[i].document: {}}
	}
	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	for i := range flat {
		for j := i + 1; j < len(flat); j++ {
			if flat[i].document == flat[j].document {
				continue
			}
			if TitleSimilarity(flat[i].Title, flat[j].Title) < threshold {
				continue
			}
			ri, rj := find(i), find(j)
			if ri == rj || overlaps(docs[ri], docs[rj]) {
				continue
			}
			if ri > rj {
				ri, rj = rj, ri
			}
			parent[rj] = ri
			for d := range docs[rj] {
				docs[ri][d] = struct{}{}
			}
			docs[rj] = nil
		}
	}

	index := make(map[int]int)
	var groups [][]int
	for i := range flat {
		root := find(i)
		at, ok := index[root]
		if !ok {
			at = len(groups)
			index[root] = at
			groups = append(groups, nil)
		}
		groups[at] = append(groups[at], i)
	}
	return groups
}

func overlaps(a, b map[string]struct{}) bool {
	for d := range a {
		if _, ok := b[d]; ok {
			return true
		}
	}
	return false
}

func pageKey(page *int) int {
	if page == nil {
		return math.MaxInt
	}
	return *page
}

// ExpandSectionIDs adds the related members of every selected unified section
// to the selection. Order is preserved and duplicates dropped.
func ExpandSectionIDs(unified []model.UnifiedSection, ids []string) []string {
	byID := make(map[string]model.UnifiedSection, len(unified))
	for _, u := range unified {
		byID[u.ID] = u
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			for _, m := range u.MemberIDs() {
				add(m)
			}
			continue
		}
		add(id)
	}
	return out
}
