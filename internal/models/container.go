// internal/models/container.go
package models

// Tier is the rarity class of a container. Rarer tiers carry larger hidden values.
type Tier string

const (
	TierNormal    Tier = "Normal"
	TierRare      Tier = "Rare"
	TierEpic      Tier = "Epic"
	TierLegendary Tier = "Legendary"
)

// Item is one object packed in a container.
type Item struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Container is one auction lot. Value and contents stay hidden from players until the round closes.
type Container struct {
	ID    string `json:"id"`
	Tier  Tier   `json:"tier"`
	Value int    `json:"value"`
	Items []Item `json:"items,omitempty"`
}

// ContainerView is the public face of a container while bidding is open.
type ContainerView struct {
	ID   string `json:"id"`
	Tier Tier   `json:"tier"`
}

// View strips the hidden value.
func (c Container) View() ContainerView {
	return ContainerView{ID: c.ID, Tier: c.Tier}
}
