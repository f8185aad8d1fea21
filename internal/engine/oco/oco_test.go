package oco

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexfin/exchange-core/internal/engine/model"
)

func newGroup(groupID, primaryID, secondaryID string) *model.OCOOrder {
	return &model.OCOOrder{
		GroupID:   groupID,
		Primary:   &model.Order{ID: primaryID, Side: model.SideSell, Type: model.OrderTypeLimit, Quantity: 100},
		Secondary: &model.Order{ID: secondaryID, Side: model.SideSell, Type: model.OrderTypeStopMarket, Quantity: 100},
	}
}

func TestFindGroupContaining(t *testing.T) {
	m := NewManager(zap.NewNop().Sugar())
	g1 := newGroup("g1", "a", "b")
	g2 := newGroup("g2", "c", "d")
	m.Add(g1)
	m.Add(g2)
	assert.Equal(t, 2, m.Len())

	assert.Same(t, g1, m.FindGroupContaining("a"))
	assert.Same(t, g1, m.FindGroupContaining("b"))
	assert.Same(t, g2, m.FindGroupContaining("d"))
	assert.Nil(t, m.FindGroupContaining("x"))
}

func TestRemoveRetiresGroup(t *testing.T) {
	m := NewManager(zap.NewNop().Sugar())
	g := newGroup("g1", "a", "b")
	m.Add(g)

	require.Same(t, g, m.Remove("g1"))
	assert.Nil(t, m.Remove("g1"))
	assert.Nil(t, m.FindGroupContaining("a"))
	assert.Equal(t, 0, m.Len())
}

func TestMarkTriggered(t *testing.T) {
	m := NewManager(zap.NewNop().Sugar())
	g := newGroup("g1", "a", "b")
	m.Add(g)

	assert.Nil(t, g.ActiveLeg())
	m.MarkTriggered(g, "b")
	assert.True(t, g.SecondaryTriggered)
	assert.False(t, g.PrimaryTriggered)
	assert.Same(t, g.Secondary, g.ActiveLeg())
	assert.Same(t, g.Primary, g.Counterpart("b"))
}
