package ecs

import (
	"errors"

	"github.com/phanxgames/spritebatch"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
	"github.com/yohamta/donburi/filter"
)

// SpriteComponent marks an entity as drawable by a batch.
var SpriteComponent = donburi.NewComponentType[spritebatch.Sprite]()

// HiddenComponent is a tag that keeps an entity out of PushAll.
var HiddenComponent = donburi.NewTag()

// FailureEvent reports a sprite skipped by a flush.
type FailureEvent struct {
	ID  uint64
	Err error
}

// FailureEventType is the Donburi event type for skipped sprites.
// Subscribe to it in your ECS systems and call ProcessEvents each frame.
var FailureEventType = events.NewEventType[FailureEvent]()

var visibleSprites = donburi.NewQuery(filter.And(
	filter.Contains(SpriteComponent),
	filter.Not(filter.Contains(HiddenComponent)),
))

// PushAll pushes every visible sprite entity into b and returns the number
// pushed. It stops at the first rejected push.
func PushAll(world donburi.World, b *spritebatch.Batch) (int, error) {
	n := 0
	var err error
	visibleSprites.Each(world, func(entry *donburi.Entry) {
		if err != nil {
			return
		}
		if err = b.Push(*SpriteComponent.Get(entry)); err == nil {
			n++
		}
	})
	return n, err
}

// Flush flushes b and publishes one FailureEvent per skipped sprite. Errors
// other than a partial failure are returned unchanged.
func Flush(world donburi.World, b *spritebatch.Batch) error {
	err := b.Flush()
	var pf *spritebatch.PartialFailureError
	if errors.As(err, &pf) {
		for _, f := range pf.Failures {
			FailureEventType.Publish(world, FailureEvent{ID: f.ID, Err: f.Err})
		}
	}
	return err
}
