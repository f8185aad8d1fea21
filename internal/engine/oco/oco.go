// Package oco tracks linked one-cancels-other order pairs. The manager is a
// non-owning index: it answers lookups, while removal of legs from the
// matching structures stays the order book's responsibility.
package oco

import (
	"go.uber.org/zap"

	"github.com/nexfin/exchange-core/internal/engine/model"
)

// Manager maps group ids to their order pairs for one book.
type Manager struct {
	logger *zap.SugaredLogger
	groups map[string]*model.OCOOrder
}

// NewManager creates an OCO manager.
func NewManager(logger *zap.SugaredLogger) *Manager {
	return &Manager{logger: logger, groups: make(map[string]*model.OCOOrder)}
}

// Add registers a group.
func (m *Manager) Add(group *model.OCOOrder) {
	m.groups[group.GroupID] = group
	m.logger.Infow("registered oco group",
		"group_id", group.GroupID,
		"primary", group.Primary.ID,
		"secondary", group.Secondary.ID,
	)
}

// Remove retires a group and returns it, or nil if unknown.
func (m *Manager) Remove(groupID string) *model.OCOOrder {
	group, ok := m.groups[groupID]
	if !ok {
		return nil
	}
	delete(m.groups, groupID)
	m.logger.Infow("retired oco group", "group_id", groupID)
	return group
}

// FindGroupContaining returns the group one of whose legs has the given
// order id, or nil.
func (m *Manager) FindGroupContaining(orderID string) *model.OCOOrder {
	for _, group := range m.groups {
		if group.Contains(orderID) {
			return group
		}
	}
	return nil
}

// MarkTriggered records which leg of the group fired.
func (m *Manager) MarkTriggered(group *model.OCOOrder, orderID string) {
	switch orderID {
	case group.Primary.ID:
		group.PrimaryTriggered = true
	case group.Secondary.ID:
		group.SecondaryTriggered = true
	}
}

// Len returns the number of live groups.
func (m *Manager) Len() int { return len(m.groups) }

// Groups returns the live groups.
func (m *Manager) Groups() []*model.OCOOrder {
	out := make([]*model.OCOOrder, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g)
	}
	return out
}
