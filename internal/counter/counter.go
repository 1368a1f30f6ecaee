// Package counter implements the SIP message tally store. It owns the
// two-level aggregate state (link → direction → message-type → count) and
// the classification pipeline feeding it.
package counter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sszokoly/sipcounter/internal/core"
	"github.com/sszokoly/sipcounter/internal/link"
	"github.com/sszokoly/sipcounter/internal/sip"
)

// Order fixes the report column position of the common request methods.
// Methods not listed sort after these, responses sort numerically last.
var Order = map[string]int{
	"INVITE":    0,
	"ReINVITE":  1,
	"BYE":       2,
	"CANCEL":    3,
	"UPDATE":    4,
	"NOTIFY":    5,
	"SUBSCRIBE": 6,
	"PUBLISH":   7,
	"ACK":       8,
	"PRACK":     9,
	"REFER":     10,
	"OPTIONS":   11,
	"INFO":      12,
	"REGISTER":  13,
	"MESSAGE":   14,
	"PING":      15,
	"UNKNOWN":   16,
}

// Tally maps a message-type label to its count.
type Tally map[string]int

// Rows holds the per-direction tallies of one link.
type Rows map[core.Direction]Tally

// Snapshot is a deep-copyable view of the aggregate state.
type Snapshot map[link.Key]Rows

// Group pairs a (possibly depth-truncated) link key with its merged rows.
// Slices of Groups preserve a deterministic order, which plain maps cannot.
type Group struct {
	Key  link.Key
	Rows Rows
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, rows := range s {
		out[k] = rows.clone()
	}
	return out
}

func (r Rows) clone() Rows {
	out := make(Rows, len(r))
	for dir, tally := range r {
		t := make(Tally, len(tally))
		for label, n := range tally {
			t[label] = n
		}
		out[dir] = t
	}
	return out
}

// Config carries the construction-time options of a Counter.
type Config struct {
	// Name labels the counting session, e.g. the capture host.
	Name string

	// SIPFilter tokens restrict which message types are counted.
	SIPFilter []string

	// HostFilter and HostExclude restrict counting by endpoint IP when
	// transport metadata is present.
	HostFilter  []string
	HostExclude []string

	// Role hints for direction resolution.
	KnownServers []string
	KnownPorts   []int

	// DefaultProto is used when neither the message nor its Via header
	// names a transport. Empty makes protocol inference mandatory.
	DefaultProto string

	// CountClasses additionally increments the status-class bucket ("5")
	// for every accepted response ("503").
	CountClasses bool

	// TrackDialogs enables per-Call-ID CSeq tracking for re-INVITE
	// detection beyond the To-tag heuristic.
	TrackDialogs bool
}

// Counter is a counting session. It is not safe for concurrent use; callers
// with multiple producers must serialize Add themselves.
type Counter struct {
	name         string
	filter       *Filter
	hostInclude  map[string]bool
	hostExclude  map[string]bool
	countClasses bool

	parser  *sip.Parser
	builder *link.Builder

	data Snapshot
}

// New creates an empty counting session.
func New(cfg Config) *Counter {
	c := &Counter{
		name:         cfg.Name,
		filter:       NewFilter(cfg.SIPFilter),
		hostInclude:  toSet(cfg.HostFilter),
		hostExclude:  toSet(cfg.HostExclude),
		countClasses: cfg.CountClasses,
		builder:      link.NewBuilder(cfg.KnownServers, cfg.KnownPorts, cfg.DefaultProto),
		data:         make(Snapshot),
	}
	if cfg.TrackDialogs {
		c.parser = sip.NewDialogParser()
	} else {
		c.parser = sip.NewParser()
	}
	return c
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}

// Name returns the session name.
func (c *Counter) Name() string { return c.name }

// Add classifies one message and increments the matching counter. The call
// either fully succeeds, silently skips a filtered message, or fails with a
// classification/resolution error leaving the state untouched.
func (c *Counter) Add(msg core.Message) error {
	cls, err := c.parser.Classify(msg.Payload)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	if msg.HasEndpoints() {
		if len(c.hostInclude) > 0 && !c.hostInclude[msg.SrcIP] && !c.hostInclude[msg.DstIP] {
			return nil
		}
		if c.hostExclude[msg.SrcIP] || c.hostExclude[msg.DstIP] {
			return nil
		}
	}

	key, dir, err := c.builder.Resolve(msg, cls.Transport)
	if err != nil {
		return fmt.Errorf("resolve link: %w", err)
	}

	c.Count(key, dir, cls.Type)
	if c.countClasses && cls.Class != "" {
		c.Count(key, dir, cls.Class)
	}
	return nil
}

// Count increments a single (link, direction, label) counter by one,
// creating rows on first use. Labels rejected by the filter are a no-op.
func (c *Counter) Count(key link.Key, dir core.Direction, label string) {
	if !c.filter.Accepts(label) {
		return
	}
	rows, ok := c.data[key]
	if !ok {
		rows = make(Rows, 2)
		c.data[key] = rows
	}
	tally, ok := rows[dir]
	if !ok {
		tally = make(Tally)
		rows[dir] = tally
	}
	tally[label]++
}

// Update merges a snapshot into the store by elementwise summation. It
// bypasses classification and filtering.
func (c *Counter) Update(s Snapshot) {
	for key, rows := range s {
		dst, ok := c.data[key]
		if !ok {
			dst = make(Rows, 2)
			c.data[key] = dst
		}
		for dir, tally := range rows {
			t, ok := dst[dir]
			if !ok {
				t = make(Tally, len(tally))
				dst[dir] = t
			}
			for label, n := range tally {
				t[label] += n
			}
		}
	}
}

// Subtract removes a snapshot elementwise. Only labels already present for
// the same link and direction are touched. With compact true, entries that
// drop to zero or below are removed afterwards.
func (c *Counter) Subtract(s Snapshot, compact bool) {
	for key, rows := range s {
		dst, ok := c.data[key]
		if !ok {
			continue
		}
		for dir, tally := range rows {
			t, ok := dst[dir]
			if !ok {
				continue
			}
			for label, n := range tally {
				if _, seen := t[label]; seen {
					t[label] -= n
				}
			}
		}
	}
	if compact {
		c.Compact()
	}
}

// Reset clears all links and rows. Configuration (name, filter, hints) is
// kept, so replaying the same input reproduces the same state.
func (c *Counter) Reset() {
	c.data = make(Snapshot)
}

// Compact drops labels with non-positive counts, then directions and links
// left empty.
func (c *Counter) Compact() {
	for key, rows := range c.data {
		for dir, tally := range rows {
			for label, n := range tally {
				if n <= 0 {
					delete(tally, label)
				}
			}
			if len(tally) == 0 {
				delete(rows, dir)
			}
		}
		if len(rows) == 0 {
			delete(c.data, key)
		}
	}
}

// Total sums every counter in the store.
func (c *Counter) Total() int {
	total := 0
	for _, rows := range c.data {
		for _, tally := range rows {
			for _, n := range tally {
				total += n
			}
		}
	}
	return total
}

// Snapshot returns a deep copy of the aggregate state for readers.
func (c *Counter) Snapshot() Snapshot {
	return c.data.Clone()
}

// Links returns all link keys in canonical order.
func (c *Counter) Links() []link.Key {
	keys := make([]link.Key, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// GroupBy merges links at the given key depth (0..5, see link.Key.Truncate)
// and returns the groups in canonical key order. Depth 5 returns every link
// unmerged; coarser depths sum the constituent tallies.
func (c *Counter) GroupBy(depth int) []Group {
	if depth > 5 {
		depth = 5
	}
	if depth < 0 {
		depth = 0
	}

	merged := make(map[link.Key]Rows)
	for key, rows := range c.data {
		t := key.Truncate(depth)
		dst, ok := merged[t]
		if !ok {
			dst = make(Rows, 2)
			merged[t] = dst
		}
		for dir, tally := range rows {
			d, ok := dst[dir]
			if !ok {
				d = make(Tally, len(tally))
				dst[dir] = d
			}
			for label, n := range tally {
				d[label] += n
			}
		}
	}

	groups := make([]Group, 0, len(merged))
	for k, rows := range merged {
		groups = append(groups, Group{Key: k, Rows: rows})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key.Less(groups[j].Key) })
	return groups
}

// MostCommon returns the n busiest groups at the given depth, ordered by
// non-increasing total volume. Ties fall back to the canonical key order,
// so repeated calls on the same state return the same sequence. n <= 0
// returns all groups.
func (c *Counter) MostCommon(n, depth int) []Group {
	groups := c.GroupBy(depth)
	sort.SliceStable(groups, func(i, j int) bool {
		vi, vj := groups[i].total(), groups[j].total()
		if vi != vj {
			return vi > vj
		}
		return groups[i].Key.Less(groups[j].Key)
	})
	if n > 0 && n < len(groups) {
		groups = groups[:n]
	}
	return groups
}

func (g Group) total() int {
	total := 0
	for _, tally := range g.Rows {
		for _, n := range tally {
			total += n
		}
	}
	return total
}

// Summary returns the per-direction, per-label sums across all links,
// computed fresh on every call.
func (c *Counter) Summary() Rows {
	groups := make([]Group, 0, len(c.data))
	for k, rows := range c.data {
		groups = append(groups, Group{Key: k, Rows: rows})
	}
	return Summarize(groups)
}

// Summarize computes the summary rows of an already-grouped view.
func Summarize(groups []Group) Rows {
	sum := make(Rows, 2)
	for _, g := range groups {
		for dir, tally := range g.Rows {
			t, ok := sum[dir]
			if !ok {
				t = make(Tally)
				sum[dir] = t
			}
			for label, n := range tally {
				t[label] += n
			}
		}
	}
	return sum
}

// Elements returns every message-type label present in the store: methods
// first in canonical Order, then response codes in ascending text order.
func (c *Counter) Elements() []string {
	groups := make([]Group, 0, len(c.data))
	for k, rows := range c.data {
		groups = append(groups, Group{Key: k, Rows: rows})
	}
	return ElementsOf(groups)
}

// ElementsOf lists the labels present in a grouped view, methods ordered by
// the canonical Order map, response codes sorted after them.
func ElementsOf(groups []Group) []string {
	seen := make(map[string]bool)
	var methods, codes []string
	for _, g := range groups {
		for _, tally := range g.Rows {
			for label := range tally {
				if seen[label] {
					continue
				}
				seen[label] = true
				if label[0] >= '0' && label[0] <= '9' {
					codes = append(codes, label)
				} else {
					methods = append(methods, label)
				}
			}
		}
	}
	sort.Slice(methods, func(i, j int) bool {
		oi, oj := orderOf(methods[i]), orderOf(methods[j])
		if oi != oj {
			return oi < oj
		}
		return methods[i] < methods[j]
	})
	sort.Strings(codes)
	return append(methods, codes...)
}

func orderOf(method string) int {
	if n, ok := Order[method]; ok {
		return n
	}
	return len(Order)
}

// Contains reports membership: an IP address or port matches against the
// link keys, anything else against the observed message-type labels.
func (c *Counter) Contains(elem string) bool {
	if looksLikeEndpoint(elem) {
		for key := range c.data {
			if key.ServerIP == elem || key.ClientIP == elem ||
				key.ServerPort == elem || key.ClientPort == elem {
				return true
			}
		}
		return false
	}
	for _, label := range c.Elements() {
		if label == elem {
			return true
		}
	}
	return false
}

// looksLikeEndpoint mirrors the membership heuristic of the report keys:
// dotted strings are IPs, digit strings longer than three are ports.
func looksLikeEndpoint(s string) bool {
	if strings.Contains(s, ".") || strings.Contains(s, ":") {
		return true
	}
	if len(s) <= 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
