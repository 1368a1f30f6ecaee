package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sszokoly/sipcounter/internal/core"
	"github.com/sszokoly/sipcounter/internal/counter"
	"github.com/sszokoly/sipcounter/internal/link"
)

func testSnapshot() counter.Snapshot {
	key := link.Key{
		ServerIP:   "1.1.1.1",
		ClientIP:   "2.2.2.1",
		Proto:      "TCP",
		ServerPort: "5060",
		ClientPort: "33456",
	}
	return counter.Snapshot{
		key: counter.Rows{
			core.DirIn:  counter.Tally{"INVITE": 2},
			core.DirOut: counter.Tally{"200": 3},
		},
	}
}

func TestCollectorUpdate(t *testing.T) {
	c := NewCollector()
	reg := prometheus.NewRegistry()
	c.MustRegister(reg)

	c.Update(testSnapshot())

	assert.Equal(t, 2, testutil.CollectAndCount(c.messages))
	assert.Equal(t, float64(5), testutil.ToFloat64(c.totalMessages))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.totalLinks))

	got := testutil.ToFloat64(c.messages.WithLabelValues(
		"1.1.1.1", "2.2.2.1", "TCP", "5060", "33456", "<-", "INVITE"))
	assert.Equal(t, float64(2), got)
}

func TestCollectorKeepsClientPortSeriesApart(t *testing.T) {
	c := NewCollector()
	reg := prometheus.NewRegistry()
	c.MustRegister(reg)

	key := link.Key{ServerIP: "1.1.1.1", ClientIP: "2.2.2.1", Proto: "TCP", ServerPort: "5060", ClientPort: "33456"}
	other := key
	other.ClientPort = "33457"

	c.Update(counter.Snapshot{
		key:   counter.Rows{core.DirIn: counter.Tally{"INVITE": 1}},
		other: counter.Rows{core.DirIn: counter.Tally{"INVITE": 1}},
	})

	assert.Equal(t, 2, testutil.CollectAndCount(c.messages))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.totalMessages))

	for _, port := range []string{"33456", "33457"} {
		got := testutil.ToFloat64(c.messages.WithLabelValues(
			"1.1.1.1", "2.2.2.1", "TCP", "5060", port, "<-", "INVITE"))
		assert.Equal(t, float64(1), got, "client port %s", port)
	}
}

func TestCollectorUpdateDropsStaleSeries(t *testing.T) {
	c := NewCollector()
	reg := prometheus.NewRegistry()
	c.MustRegister(reg)

	c.Update(testSnapshot())
	require.Equal(t, 2, testutil.CollectAndCount(c.messages))

	// A compacted-away link must disappear from the exposition.
	c.Update(counter.Snapshot{})
	assert.Equal(t, 0, testutil.CollectAndCount(c.messages))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.totalMessages))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.totalLinks))
}
