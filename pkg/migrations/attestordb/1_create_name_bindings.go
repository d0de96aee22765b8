package attestordb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/openwallet/nmc-attestor/pkg/bindingstore"
	mghelper "github.com/openwallet/nmc-attestor/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating name_bindings table...")
		if err := mghelper.CreateSchema(ctx, db, &bindingstore.BindingDao{}); err != nil {
			return err
		}
		// The name index is deliberately not unique: re-registrations keep
		// their earlier rows.
		return mghelper.CreateModelIndexes(ctx, db, &bindingstore.BindingDao{}, "name", "active")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping name_bindings table...")
		return mghelper.DropTables(ctx, db, &bindingstore.BindingDao{})
	})
}
