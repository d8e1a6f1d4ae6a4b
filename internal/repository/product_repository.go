package repository

import (
    "context"
    "database/sql"
    "fmt"
    "strings"

    "github.com/happyhu/event-booking/internal/model"
)

// ProductRepo is the read-only view of the catalog that the booking
// engine needs: resolving selected product ids to names and current
// prices when a paid booking is staged.  Catalog management lives in
// a separate service and is out of scope here.
type ProductRepo struct {
    db *sql.DB
}

// NewProductRepo returns a ProductRepo bound to the given database.
func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

// PriceLineItems resolves the given product ids into line items
// priced at the catalog's current values.  Duplicate ids are counted
// once.  If any id is unknown it returns ErrProductNotFound, because
// a staged booking must never be priced from partial data.
func (r *ProductRepo) PriceLineItems(ctx context.Context, productIDs []uint64) ([]model.LineItem, error) {
    if len(productIDs) == 0 {
        return nil, nil
    }
    unique := make([]uint64, 0, len(productIDs))
    seen := make(map[uint64]struct{}, len(productIDs))
    for _, id := range productIDs {
        if _, ok := seen[id]; !ok {
            seen[id] = struct{}{}
            unique = append(unique, id)
        }
    }
    placeholders := strings.TrimSuffix(strings.Repeat("?,", len(unique)), ",")
    args := make([]interface{}, len(unique))
    for i, id := range unique {
        args[i] = id
    }
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, name, price FROM products WHERE id IN (`+placeholders+`)`, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    items := make([]model.LineItem, 0, len(unique))
    found := make(map[uint64]struct{}, len(unique))
    for rows.Next() {
        var p model.Product
        if err := rows.Scan(&p.ID, &p.Name, &p.Price); err != nil {
            return nil, err
        }
        found[p.ID] = struct{}{}
        items = append(items, model.LineItem{ProductID: p.ID, Name: p.Name, Price: p.Price})
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    for _, id := range unique {
        if _, ok := found[id]; !ok {
            return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, id)
        }
    }
    return items, nil
}
