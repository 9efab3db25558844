// Package graph implements maximum-weight matching on general undirected graphs
// (Edmonds' blossom algorithm with dual variables, O(n^3)).
//
// The implementation follows Joris van Rantwijk's mwmatching and Galil,
// "Efficient algorithms for finding maximum matching in graphs" (1986).
// Weights are integers; all dual variables stay integral because vertex duals
// are kept at twice their textbook value.
package graph

// Edge is an undirected edge between vertices I and J.
type Edge struct {
	I, J   int
	Weight int64
}

// MaxWeightMatching returns mate, where mate[v] is the vertex matched to v or
// -1. Vertices are 0..max(I,J). With maxCardinality the result is a
// maximum-weight matching among maximum-cardinality matchings.
func MaxWeightMatching(edges []Edge, maxCardinality bool) []int {
	if len(edges) == 0 {
		return nil
	}
	m := newMatcher(edges, maxCardinality)
	m.solve()
	return m.result()
}

type matcher struct {
	edges          []Edge
	nvertex        int
	maxCardinality bool

	// endpoint[p] is the vertex at endpoint p; edge k has endpoints 2k and 2k+1.
	endpoint []int
	// neighbend[v] lists remote endpoints of edges incident to v.
	neighbend [][]int

	mate     []int // endpoint index, -1 when single
	label    []int // 0 free, 1 S, 2 T; 4 and 5 are temporary marks in scanBlossom
	labelend []int

	inblossom        []int
	blossomparent    []int
	blossomchilds    [][]int
	blossombase      []int
	blossomendps     [][]int
	bestedge         []int
	blossombestedges [][]int
	unusedblossoms   []int

	dualvar   []int64
	allowedge []bool
	queue     []int
}

func newMatcher(edges []Edge, maxCardinality bool) *matcher {
	nvertex := 0
	var maxweight int64
	for _, e := range edges {
		if e.I < 0 || e.J < 0 || e.I == e.J {
			panic("graph: invalid edge")
		}
		if e.I >= nvertex {
			nvertex = e.I + 1
		}
		if e.J >= nvertex {
			nvertex = e.J + 1
		}
		if e.Weight > maxweight {
			maxweight = e.Weight
		}
	}

	m := &matcher{
		edges:          edges,
		nvertex:        nvertex,
		maxCardinality: maxCardinality,
	}
	nedge := len(edges)

	m.endpoint = make([]int, 2*nedge)
	for p := range m.endpoint {
		if p%2 == 0 {
			m.endpoint[p] = edges[p/2].I
		} else {
			m.endpoint[p] = edges[p/2].J
		}
	}
	m.neighbend = make([][]int, nvertex)
	for k, e := range edges {
		m.neighbend[e.I] = append(m.neighbend[e.I], 2*k+1)
		m.neighbend[e.J] = append(m.neighbend[e.J], 2*k)
	}

	m.mate = filled(nvertex, -1)
	m.label = make([]int, 2*nvertex)
	m.labelend = filled(2*nvertex, -1)
	m.inblossom = make([]int, nvertex)
	for v := range m.inblossom {
		m.inblossom[v] = v
	}
	m.blossomparent = filled(2*nvertex, -1)
	m.blossomchilds = make([][]int, 2*nvertex)
	m.blossombase = make([]int, 2*nvertex)
	for v := 0; v < nvertex; v++ {
		m.blossombase[v] = v
	}
	for b := nvertex; b < 2*nvertex; b++ {
		m.blossombase[b] = -1
	}
	m.blossomendps = make([][]int, 2*nvertex)
	m.bestedge = filled(2*nvertex, -1)
	m.blossombestedges = make([][]int, 2*nvertex)
	m.unusedblossoms = make([]int, 0, nvertex)
	for b := nvertex; b < 2*nvertex; b++ {
		m.unusedblossoms = append(m.unusedblossoms, b)
	}
	m.dualvar = make([]int64, 2*nvertex)
	for v := 0; v < nvertex; v++ {
		m.dualvar[v] = maxweight
	}
	m.allowedge = make([]bool, nedge)
	return m
}

func filled(n, v int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// at indexes s from the end for negative j, so at(s, -1) is the last element.
func at(s []int, j int) int {
	n := len(s)
	return s[((j%n)+n)%n]
}

func indexOf(s []int, x int) int {
	for i, v := range s {
		if v == x {
			return i
		}
	}
	return -1
}

func (m *matcher) slack(k int) int64 {
	e := m.edges[k]
	return m.dualvar[e.I] + m.dualvar[e.J] - 2*e.Weight
}

func (m *matcher) blossomLeaves(b int, out []int) []int {
	if b < m.nvertex {
		return append(out, b)
	}
	for _, t := range m.blossomchilds[b] {
		if t < m.nvertex {
			out = append(out, t)
		} else {
			out = m.blossomLeaves(t, out)
		}
	}
	return out
}

// assignLabel labels w (and its top-level blossom) with t reached through endpoint p.
func (m *matcher) assignLabel(w, t, p int) {
	b := m.inblossom[w]
	m.label[w], m.label[b] = t, t
	m.labelend[w], m.labelend[b] = p, p
	m.bestedge[w], m.bestedge[b] = -1, -1
	if t == 1 {
		m.queue = m.blossomLeaves(b, m.queue)
	} else if t == 2 {
		base := m.blossombase[b]
		mb := m.mate[base]
		m.assignLabel(m.endpoint[mb], 1, mb^1)
	}
}

// scanBlossom traces back from v and w to find a new blossom base, or -1
// when the paths reach two different roots (augmenting path).
func (m *matcher) scanBlossom(v, w int) int {
	var path []int
	base := -1
	for v != -1 || w != -1 {
		b := m.inblossom[v]
		if m.label[b]&4 != 0 {
			base = m.blossombase[b]
			break
		}
		path = append(path, b)
		m.label[b] = 5
		if m.labelend[b] == -1 {
			v = -1
		} else {
			v = m.endpoint[m.labelend[b]]
			b = m.inblossom[v]
			v = m.endpoint[m.labelend[b]]
		}
		if w != -1 {
			v, w = w, v
		}
	}
	for _, b := range path {
		m.label[b] = 1
	}
	return base
}

// addBlossom contracts the odd cycle through edge k with the given base.
func (m *matcher) addBlossom(base, k int) {
	v, w := m.edges[k].I, m.edges[k].J
	bb := m.inblossom[base]
	bv := m.inblossom[v]
	bw := m.inblossom[w]

	b := m.unusedblossoms[len(m.unusedblossoms)-1]
	m.unusedblossoms = m.unusedblossoms[:len(m.unusedblossoms)-1]

	m.blossombase[b] = base
	m.blossomparent[b] = -1
	m.blossomparent[bb] = b

	var path, endps []int
	for bv != bb {
		m.blossomparent[bv] = b
		path = append(path, bv)
		endps = append(endps, m.labelend[bv])
		v = m.endpoint[m.labelend[bv]]
		bv = m.inblossom[v]
	}
	path = append(path, bb)
	reverse(path)
	reverse(endps)
	endps = append(endps, 2*k)
	for bw != bb {
		m.blossomparent[bw] = b
		path = append(path, bw)
		endps = append(endps, m.labelend[bw]^1)
		w = m.endpoint[m.labelend[bw]]
		bw = m.inblossom[w]
	}
	m.blossomchilds[b] = path
	m.blossomendps[b] = endps

	m.label[b] = 1
	m.labelend[b] = m.labelend[bb]
	m.dualvar[b] = 0
	for _, leaf := range m.blossomLeaves(b, nil) {
		if m.label[m.inblossom[leaf]] == 2 {
			m.queue = append(m.queue, leaf)
		}
		m.inblossom[leaf] = b
	}

	bestedgeto := filled(2*m.nvertex, -1)
	for _, sub := range path {
		var nblists [][]int
		if m.blossombestedges[sub] == nil {
			for _, leaf := range m.blossomLeaves(sub, nil) {
				list := make([]int, len(m.neighbend[leaf]))
				for i, p := range m.neighbend[leaf] {
					list[i] = p / 2
				}
				nblists = append(nblists, list)
			}
		} else {
			nblists = [][]int{m.blossombestedges[sub]}
		}
		for _, nblist := range nblists {
			for _, ek := range nblist {
				j := m.edges[ek].J
				if m.inblossom[j] == b {
					j = m.edges[ek].I
				}
				bj := m.inblossom[j]
				if bj != b && m.label[bj] == 1 &&
					(bestedgeto[bj] == -1 || m.slack(ek) < m.slack(bestedgeto[bj])) {
					bestedgeto[bj] = ek
				}
			}
		}
		m.blossombestedges[sub] = nil
		m.bestedge[sub] = -1
	}
	best := []int{}
	for _, ek := range bestedgeto {
		if ek != -1 {
			best = append(best, ek)
		}
	}
	m.blossombestedges[b] = best
	m.bestedge[b] = -1
	for _, ek := range best {
		if m.bestedge[b] == -1 || m.slack(ek) < m.slack(m.bestedge[b]) {
			m.bestedge[b] = ek
		}
	}
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// expandBlossom dissolves b. With endstage false, T-labelled sub-blossoms on the
// even path are relabelled so the alternating tree stays consistent.
func (m *matcher) expandBlossom(b int, endstage bool) {
	for _, s := range m.blossomchilds[b] {
		m.blossomparent[s] = -1
		if s < m.nvertex {
			m.inblossom[s] = s
		} else if endstage && m.dualvar[s] == 0 {
			m.expandBlossom(s, endstage)
		} else {
			for _, leaf := range m.blossomLeaves(s, nil) {
				m.inblossom[leaf] = s
			}
		}
	}

	if !endstage && m.label[b] == 2 {
		childs := m.blossomchilds[b]
		endps := m.blossomendps[b]
		entrychild := m.inblossom[m.endpoint[m.labelend[b]^1]]
		j := indexOf(childs, entrychild)
		var jstep, endptrick int
		if j&1 != 0 {
			j -= len(childs)
			jstep = 1
			endptrick = 0
		} else {
			jstep = -1
			endptrick = 1
		}
		p := m.labelend[b]
		for j != 0 {
			m.label[m.endpoint[p^1]] = 0
			m.label[m.endpoint[at(endps, j-endptrick)^endptrick^1]] = 0
			m.assignLabel(m.endpoint[p^1], 2, p)
			m.allowedge[at(endps, j-endptrick)/2] = true
			j += jstep
			p = at(endps, j-endptrick) ^ endptrick
			m.allowedge[p/2] = true
			j += jstep
		}
		bv := at(childs, j)
		m.label[m.endpoint[p^1]], m.label[bv] = 2, 2
		m.labelend[m.endpoint[p^1]], m.labelend[bv] = p, p
		m.bestedge[bv] = -1
		j += jstep
		for at(childs, j) != entrychild {
			bv = at(childs, j)
			if m.label[bv] == 1 {
				j += jstep
				continue
			}
			v := -1
			for _, leaf := range m.blossomLeaves(bv, nil) {
				v = leaf
				if m.label[leaf] != 0 {
					break
				}
			}
			if v != -1 && m.label[v] != 0 {
				m.label[v] = 0
				m.label[m.endpoint[m.mate[m.blossombase[bv]]]] = 0
				m.assignLabel(v, 2, m.labelend[v])
			}
			j += jstep
		}
	}

	m.label[b], m.labelend[b] = -1, -1
	m.blossomchilds[b], m.blossomendps[b] = nil, nil
	m.blossombase[b] = -1
	m.blossombestedges[b] = nil
	m.bestedge[b] = -1
	m.unusedblossoms = append(m.unusedblossoms, b)
}

// augmentBlossom swaps matched and unmatched edges along the even path from
// vertex v to the base of b, making v the new base.
func (m *matcher) augmentBlossom(b, v int) {
	t := v
	for m.blossomparent[t] != b {
		t = m.blossomparent[t]
	}
	if t >= m.nvertex {
		m.augmentBlossom(t, v)
	}
	childs := m.blossomchilds[b]
	endps := m.blossomendps[b]
	i := indexOf(childs, t)
	j := i
	var jstep, endptrick int
	if i&1 != 0 {
		j -= len(childs)
		jstep = 1
		endptrick = 0
	} else {
		jstep = -1
		endptrick = 1
	}
	for j != 0 {
		j += jstep
		t = at(childs, j)
		p := at(endps, j-endptrick) ^ endptrick
		if t >= m.nvertex {
			m.augmentBlossom(t, m.endpoint[p])
		}
		j += jstep
		t = at(childs, j)
		if t >= m.nvertex {
			m.augmentBlossom(t, m.endpoint[p^1])
		}
		m.mate[m.endpoint[p]] = p ^ 1
		m.mate[m.endpoint[p^1]] = p
	}
	m.blossomchilds[b] = rotate(childs, i)
	m.blossomendps[b] = rotate(endps, i)
	m.blossombase[b] = m.blossombase[m.blossomchilds[b][0]]
}

func rotate(s []int, i int) []int {
	out := make([]int, 0, len(s))
	out = append(out, s[i:]...)
	return append(out, s[:i]...)
}

// augmentMatching flips the augmenting path through edge k.
func (m *matcher) augmentMatching(k int) {
	v, w := m.edges[k].I, m.edges[k].J
	for _, sp := range [2][2]int{{v, 2*k + 1}, {w, 2 * k}} {
		s, p := sp[0], sp[1]
		for {
			bs := m.inblossom[s]
			if bs >= m.nvertex {
				m.augmentBlossom(bs, s)
			}
			m.mate[s] = p
			if m.labelend[bs] == -1 {
				break
			}
			t := m.endpoint[m.labelend[bs]]
			bt := m.inblossom[t]
			s = m.endpoint[m.labelend[bt]]
			j := m.endpoint[m.labelend[bt]^1]
			if bt >= m.nvertex {
				m.augmentBlossom(bt, j)
			}
			m.mate[j] = m.labelend[bt]
			p = m.labelend[bt] ^ 1
		}
	}
}

func (m *matcher) solve() {
	nv := m.nvertex
	for stage := 0; stage < nv; stage++ {
		for i := range m.label {
			m.label[i] = 0
			m.bestedge[i] = -1
		}
		for b := nv; b < 2*nv; b++ {
			m.blossombestedges[b] = nil
		}
		for k := range m.allowedge {
			m.allowedge[k] = false
		}
		m.queue = m.queue[:0]

		for v := 0; v < nv; v++ {
			if m.mate[v] == -1 && m.label[m.inblossom[v]] == 0 {
				m.assignLabel(v, 1, -1)
			}
		}

		augmented := false
		for {
			for len(m.queue) > 0 && !augmented {
				v := m.queue[len(m.queue)-1]
				m.queue = m.queue[:len(m.queue)-1]

				for _, p := range m.neighbend[v] {
					k := p / 2
					w := m.endpoint[p]
					if m.inblossom[v] == m.inblossom[w] {
						continue
					}
					var kslack int64
					if !m.allowedge[k] {
						kslack = m.slack(k)
						if kslack <= 0 {
							m.allowedge[k] = true
						}
					}
					if m.allowedge[k] {
						if m.label[m.inblossom[w]] == 0 {
							m.assignLabel(w, 2, p^1)
						} else if m.label[m.inblossom[w]] == 1 {
							base := m.scanBlossom(v, w)
							if base >= 0 {
								m.addBlossom(base, k)
							} else {
								m.augmentMatching(k)
								augmented = true
								break
							}
						} else if m.label[w] == 0 {
							m.label[w] = 2
							m.labelend[w] = p ^ 1
						}
					} else if m.label[m.inblossom[w]] == 1 {
						b := m.inblossom[v]
						if m.bestedge[b] == -1 || kslack < m.slack(m.bestedge[b]) {
							m.bestedge[b] = k
						}
					} else if m.label[w] == 0 {
						if m.bestedge[w] == -1 || kslack < m.slack(m.bestedge[w]) {
							m.bestedge[w] = k
						}
					}
				}
			}
			if augmented {
				break
			}

			deltatype := -1
			var delta int64
			deltaedge, deltablossom := -1, -1

			if !m.maxCardinality {
				deltatype = 1
				delta = minInt64(m.dualvar[:nv])
			}
			for v := 0; v < nv; v++ {
				if m.label[m.inblossom[v]] == 0 && m.bestedge[v] != -1 {
					d := m.slack(m.bestedge[v])
					if deltatype == -1 || d < delta {
						delta = d
						deltatype = 2
						deltaedge = m.bestedge[v]
					}
				}
			}
			for b := 0; b < 2*nv; b++ {
				if m.blossomparent[b] == -1 && m.label[b] == 1 && m.bestedge[b] != -1 {
					d := m.slack(m.bestedge[b]) / 2
					if deltatype == -1 || d < delta {
						delta = d
						deltatype = 3
						deltaedge = m.bestedge[b]
					}
				}
			}
			for b := nv; b < 2*nv; b++ {
				if m.blossombase[b] >= 0 && m.blossomparent[b] == -1 && m.label[b] == 2 &&
					(deltatype == -1 || m.dualvar[b] < delta) {
					delta = m.dualvar[b]
					deltatype = 4
					deltablossom = b
				}
			}
			if deltatype == -1 {
				// only reachable with maxCardinality: no more augmenting paths
				deltatype = 1
				delta = minInt64(m.dualvar[:nv])
				if delta < 0 {
					delta = 0
				}
			}

			for v := 0; v < nv; v++ {
				switch m.label[m.inblossom[v]] {
				case 1:
					m.dualvar[v] -= delta
				case 2:
					m.dualvar[v] += delta
				}
			}
			for b := nv; b < 2*nv; b++ {
				if m.blossombase[b] >= 0 && m.blossomparent[b] == -1 {
					switch m.label[b] {
					case 1:
						m.dualvar[b] += delta
					case 2:
						m.dualvar[b] -= delta
					}
				}
			}

			if deltatype == 1 {
				break
			}
			switch deltatype {
			case 2:
				m.allowedge[deltaedge] = true
				i := m.edges[deltaedge].I
				if m.label[m.inblossom[i]] == 0 {
					i = m.edges[deltaedge].J
				}
				m.queue = append(m.queue, i)
			case 3:
				m.allowedge[deltaedge] = true
				m.queue = append(m.queue, m.edges[deltaedge].I)
			case 4:
				m.expandBlossom(deltablossom, false)
			}
		}

		if !augmented {
			break
		}
		for b := nv; b < 2*nv; b++ {
			if m.blossomparent[b] == -1 && m.blossombase[b] >= 0 && m.label[b] == 1 && m.dualvar[b] == 0 {
				m.expandBlossom(b, true)
			}
		}
	}
}

func (m *matcher) result() []int {
	out := make([]int, m.nvertex)
	for v := range out {
		if m.mate[v] >= 0 {
			out[v] = m.endpoint[m.mate[v]]
		} else {
			out[v] = -1
		}
	}
	return out
}

func minInt64(s []int64) int64 {
	min := s[0]
	for _, v := range s[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
