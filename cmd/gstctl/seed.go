package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"gstledger/internal/app"
	"gstledger/internal/core/apperror"
	"gstledger/internal/core/types"
	"gstledger/internal/domain/catalogs/party"
	"gstledger/internal/domain/catalogs/product"
	"gstledger/internal/domain/tax"
	"gstledger/pkg/logger"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo parties and products",
	Long: `Create a small set of customers, vendors and products for trying out
the API. Parties are matched by GSTIN and products by SKU; records that
already exist are skipped, so the command can be re-run safely.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv("seed")
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		rt, err := e.open(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx = logger.WithLogger(ctx, e.log)
		parties, err := seedParties(ctx, rt, e.log)
		if err != nil {
			return err
		}
		products, err := seedProducts(ctx, rt, e.log)
		if err != nil {
			return err
		}
		e.log.Infow("seeding completed", "parties", parties, "products", products)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func demoParties() []*party.Party {
	acme := party.NewParty("Acme Traders", party.RoleCustomer, tax.StatusGST, "27AAPFU0939F1ZV", "27")
	acme.Billing = party.Address{Line1: "12 Market Road", City: "Pune", StateCode: "27", Pincode: "411001"}

	delta := party.NewParty("Delta Retail", party.RoleCustomer, tax.StatusGST, "29AAGCR4375J1ZU", "29")
	delta.Billing = party.Address{Line1: "4 MG Road", City: "Bengaluru", StateCode: "29", Pincode: "560001"}

	supplier := party.NewParty("Sunrise Components", party.RoleVendor, tax.StatusGST, "24AAACC1206D1ZM", "24")
	supplier.Billing = party.Address{Line1: "Plot 7, GIDC", City: "Ahmedabad", StateCode: "24", Pincode: "380015"}

	return []*party.Party{acme, delta, supplier}
}

func demoProducts() []*product.Product {
	laptop := product.NewProduct("Laptop 14in", "LAP-14", "8471", decimal.NewFromInt(18))
	laptop.Category = "Electronics"
	laptop.OpeningStock = types.NewQuantity(25)
	laptop.PurchasePrice = decimal.NewFromInt(42000)
	laptop.SalePrice = decimal.NewFromInt(52000)

	mouse := product.NewProduct("Wireless Mouse", "MSE-01", "8471", decimal.NewFromInt(18))
	mouse.Category = "Electronics"
	mouse.OpeningStock = types.NewQuantity(200)
	mouse.PurchasePrice = decimal.NewFromInt(350)
	mouse.SalePrice = decimal.NewFromInt(599)

	paper := product.NewProduct("A4 Paper Ream", "PPR-A4", "4802", decimal.NewFromInt(12))
	paper.Category = "Stationery"
	paper.UOM = "PKT"
	paper.OpeningStock = types.NewQuantity(500)
	paper.PurchasePrice = decimal.NewFromInt(210)
	paper.SalePrice = decimal.NewFromInt(280)

	rice := product.NewProduct("Rice 25kg", "RCE-25", "1006", decimal.Zero)
	rice.Category = "Grocery"
	rice.UOM = "BAG"
	rice.OpeningStock = types.NewQuantity(40)
	rice.PurchasePrice = decimal.NewFromInt(1150)
	rice.SalePrice = decimal.NewFromInt(1400)

	return []*product.Product{laptop, mouse, paper, rice}
}

func seedParties(ctx context.Context, rt *app.Runtime, log *logger.Logger) (int, error) {
	created := 0
	for _, p := range demoParties() {
		err := rt.Parties.Create(ctx, p)
		if apperror.IsCode(err, apperror.CodeDuplicate) {
			log.Debugw("party exists, skipping", "name", p.Name)
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed party %q: %w", p.Name, err)
		}
		created++
	}
	return created, nil
}

func seedProducts(ctx context.Context, rt *app.Runtime, log *logger.Logger) (int, error) {
	created := 0
	for _, p := range demoProducts() {
		err := rt.Products.Create(ctx, p)
		if apperror.IsCode(err, apperror.CodeDuplicate) {
			log.Debugw("product exists, skipping", "sku", p.SKU)
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed product %q: %w", p.SKU, err)
		}
		created++
	}
	return created, nil
}
