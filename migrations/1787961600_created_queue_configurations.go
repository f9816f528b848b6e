package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("queue_configurations")

		collection.Fields.Add(
			&core.TextField{
				Name:     "resource_id",
				Required: true,
				Max:      64,
			},
			&core.NumberField{
				Name:     "max_concurrent",
				Required: true,
				OnlyInt:  true,
				Min:      types.Pointer(1.0),
			},
			&core.NumberField{
				Name: "avg_session_minutes",
				Min:  types.Pointer(0.0),
			},
			&core.NumberField{
				Name:    "session_timeout_seconds",
				OnlyInt: true,
				Min:     types.Pointer(0.0),
			},
		)

		collection.AddIndex("idx_queue_configurations_resource_id", true, "resource_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("queue_configurations")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
