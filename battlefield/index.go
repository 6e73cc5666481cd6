// Package battlefield maintains an R-tree spatial index over card positions
// on each session's battlefield, so clients can query "what's in my current
// viewport" without scanning every card in the session.
package battlefield

import (
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/rtree"
)

// BoundingBox is an axis-aligned rectangle in battlefield coordinates.
type BoundingBox struct {
	X1, Y1, X2, Y2 float64
}

// IndexedCard is a card's spatial footprint as tracked by the index.
// QueryViewport and the per-session Stats counts skip cards whose IsActive
// is false; a card that leaves the battlefield is deleted with Remove.
type IndexedCard struct {
	CardID    string
	SessionID string
	OwnerID   string
	ZIndex    int
	BBox      BoundingBox
	IsActive  bool
}

// Index indexes one process's view of every session's battlefield cards.
// Grounded on the teacher's SpatialIndex (spatial.go), generalized from
// per-room strokes to per-session cards.
type Index struct {
	tree  *rtree.RTree
	mutex sync.RWMutex
}

// New creates an empty spatial index.
func New() *Index {
	return &Index{tree: &rtree.RTree{}}
}

// Insert adds a card's footprint to the index.
func (idx *Index) Insert(card *IndexedCard) error {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	if card.BBox.X1 >= card.BBox.X2 || card.BBox.Y1 >= card.BBox.Y2 {
		return fmt.Errorf("battlefield: invalid bounding box for card %s: %+v", card.CardID, card.BBox)
	}

	min := [2]float64{card.BBox.X1, card.BBox.Y1}
	max := [2]float64{card.BBox.X2, card.BBox.Y2}
	idx.tree.Insert(min, max, card)
	return nil
}

// Update replaces a card's footprint — used whenever a MoveCard or PlayCard
// operation changes a card's battlefield position.
func (idx *Index) Update(cardID string, updated *IndexedCard) error {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.removeByIDLocked(cardID)

	min := [2]float64{updated.BBox.X1, updated.BBox.Y1}
	max := [2]float64{updated.BBox.X2, updated.BBox.Y2}
	idx.tree.Insert(min, max, updated)
	return nil
}

// Remove drops a card from the index entirely (it left the battlefield zone).
func (idx *Index) Remove(cardID string) error {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()
	return idx.removeByIDLocked(cardID)
}

func (idx *Index) removeByIDLocked(cardID string) error {
	var target *IndexedCard
	var targetMin, targetMax [2]float64

	idx.tree.Scan(func(min, max [2]float64, item interface{}) bool {
		card := item.(*IndexedCard)
		if card.CardID == cardID {
			target = card
			targetMin, targetMax = min, max
			return false
		}
		return true
	})

	if target == nil {
		return fmt.Errorf("battlefield: card %s not found in index", cardID)
	}

	idx.tree.Delete(targetMin, targetMax, target)
	return nil
}

// QueryViewport returns every active card in sessionID whose bounding box
// intersects viewport.
func (idx *Index) QueryViewport(viewport BoundingBox, sessionID string) ([]*IndexedCard, error) {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	if viewport.X1 >= viewport.X2 || viewport.Y1 >= viewport.Y2 {
		return nil, fmt.Errorf("battlefield: invalid viewport bounds: %+v", viewport)
	}

	var results []*IndexedCard
	min := [2]float64{viewport.X1, viewport.Y1}
	max := [2]float64{viewport.X2, viewport.Y2}

	idx.tree.Search(min, max, func(min, max [2]float64, item interface{}) bool {
		card := item.(*IndexedCard)
		if card.SessionID == sessionID && card.IsActive {
			results = append(results, card)
		}
		return true
	})

	return results, nil
}

// ClearSession removes every card belonging to sessionID — used when a game
// session ends.
func (idx *Index) ClearSession(sessionID string) int {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	type entry struct {
		card     *IndexedCard
		min, max [2]float64
	}
	var toRemove []entry

	idx.tree.Scan(func(min, max [2]float64, item interface{}) bool {
		card := item.(*IndexedCard)
		if card.SessionID == sessionID {
			toRemove = append(toRemove, entry{card, min, max})
		}
		return true
	})

	for _, e := range toRemove {
		idx.tree.Delete(e.min, e.max, e.card)
	}
	return len(toRemove)
}

// Stats summarizes index occupancy for diagnostics.
type Stats struct {
	TotalItems int
	PerSession map[string]int
}

// Stats reports the current index occupancy: TotalItems counts every indexed
// card, PerSession counts active cards only.
func (idx *Index) Stats() Stats {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	perSession := make(map[string]int)
	total := 0
	idx.tree.Scan(func(min, max [2]float64, item interface{}) bool {
		card := item.(*IndexedCard)
		total++
		if card.IsActive {
			perSession[card.SessionID]++
		}
		return true
	})

	return Stats{TotalItems: total, PerSession: perSession}
}

// QueryResult wraps a viewport query with timing metadata, for the
// /api/battlefield/viewport diagnostic endpoint.
type QueryResult struct {
	Cards       []*IndexedCard
	QueryTimeNS int64
	Viewport    BoundingBox
}

// QueryViewportWithMetrics is QueryViewport plus wall-clock timing.
func (idx *Index) QueryViewportWithMetrics(viewport BoundingBox, sessionID string) (*QueryResult, error) {
	start := time.Now()
	cards, err := idx.QueryViewport(viewport, sessionID)
	if err != nil {
		return nil, err
	}

	return &QueryResult{
		Cards:       cards,
		QueryTimeNS: time.Since(start).Nanoseconds(),
		Viewport:    viewport,
	}, nil
}
