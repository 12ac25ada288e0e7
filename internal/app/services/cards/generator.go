package cards

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/crewfund/crew/internal/domain/models"
)

// CardActive is the status stamped on newly issued cards.
const CardActive = "Activa"

// Generator issues simulated card numbers. Cards only ever fund recharges
// of their owner's balance, so numbers are random digits rather than
// Luhn-valid PANs.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a Generator drawing from src. A nil src uses a
// randomly seeded PCG.
func NewGenerator(src rand.Source) *Generator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Generator{rng: rand.New(src)}
}

// Issue builds a card for holder, expiring four years after now.
func (g *Generator) Issue(holder models.User, now time.Time) models.VirtualCard {
	g.mu.Lock()
	defer g.mu.Unlock()

	var b strings.Builder
	b.WriteByte(byte('4' + g.rng.IntN(2)))
	for i := 0; i < 15; i++ {
		b.WriteByte(byte('0' + g.rng.IntN(10)))
	}
	month := g.rng.IntN(12) + 1
	year := (now.Year() + 4) % 100

	return models.VirtualCard{
		CardNumber: b.String(),
		ExpiryDate: fmt.Sprintf("%02d/%02d", month, year),
		CVV:        fmt.Sprintf("%d", 100+g.rng.IntN(900)),
		Status:     CardActive,
		NameOnCard: holder.Name(),
		IssuedAt:   now,
	}
}
