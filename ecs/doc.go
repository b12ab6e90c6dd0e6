// Package ecs connects a [Donburi] world to a spritebatch.Batch.
//
// Entities carrying [SpriteComponent] are pushed into a batch with [PushAll].
// [Flush] flushes the batch and publishes every skipped sprite to
// [FailureEventType], so ECS systems can react to missing images.
//
// Usage:
//
//	e := world.Create(ecs.SpriteComponent)
//	ecs.SpriteComponent.SetValue(world.Entry(e), spritebatch.Sprite{ID: 3, ScaleX: 1, ScaleY: 1})
//
//	// in Draw
//	ecs.PushAll(world, batch)
//	ecs.Flush(world, batch)
//	ecs.FailureEventType.ProcessEvents(world)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
