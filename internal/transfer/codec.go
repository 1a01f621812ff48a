// Package transfer moves the whole system state between installations as a
// single CSV document: catalog, orders and the order counter. Import is a
// full replace, intended for promoting a prepared catalog onto the festival
// machines or restoring a backup.
package transfer

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/sagra-pos/sagra-pos/internal/catalog"
	"github.com/sagra-pos/sagra-pos/internal/orders"
)

// Record type tags, first field of every CSV row.
const (
	recordProduct   = "product"
	recordMenu      = "menu"
	recordMenuItem  = "menu_item"
	recordOrder     = "order"
	recordOrderItem = "order_item"
)

// MenuItemRef ties a component product to its menu with its display position.
type MenuItemRef struct {
	MenuID    int64
	ProductID int64
	Position  int
}

// Archive is the decoded form of a transfer document.
type Archive struct {
	Products  []catalog.Product
	Menus     []catalog.CompositeMenu
	MenuItems []MenuItemRef
	Orders    []orders.Order
}

// Write serialises an archive to CSV. Menu component lists and order items
// travel as their own rows so the format stays flat.
func Write(w io.Writer, a Archive) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	for _, p := range a.Products {
		err := writer.Write([]string{
			recordProduct,
			formatInt(p.ID), p.Name, string(p.Category),
			formatInt(p.PriceCents), formatInt(p.Quantity),
		})
		if err != nil {
			return err
		}
	}
	for _, m := range a.Menus {
		err := writer.Write([]string{
			recordMenu,
			formatInt(m.ID), m.Name, formatInt(m.PriceCents),
		})
		if err != nil {
			return err
		}
		for position, productID := range m.Items {
			err := writer.Write([]string{
				recordMenuItem,
				formatInt(m.ID), formatInt(productID), strconv.Itoa(position),
			})
			if err != nil {
				return err
			}
		}
	}
	for _, o := range a.Orders {
		err := writer.Write([]string{
			recordOrder,
			o.ID, formatInt(o.OrderNumber), string(o.Status),
			strconv.FormatBool(o.Staff), formatInt(o.TotalCents),
			formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
			formatTimePtr(o.CompletedAt), formatTimePtr(o.DeliveredAt),
		})
		if err != nil {
			return err
		}
		for position, item := range o.Items {
			err := writer.Write([]string{
				recordOrderItem,
				o.ID, formatInt(item.RefID), item.Name,
				formatInt(item.PriceCents), formatInt(item.Quantity),
				string(item.Category), strconv.Itoa(position),
			})
			if err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// Read parses a transfer document. Rows may arrive in any order; item rows
// are attached to their parents after the full read.
func Read(r io.Reader) (*Archive, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var archive Archive
	orderIndex := make(map[string]int)
	type orderItemRow struct {
		orderID  string
		position int
		item     orders.Item
	}
	var orderItems []orderItemRow

	for line := 1; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("transfer: line %d: %w", line, err)
		}
		if len(row) == 0 {
			continue
		}
		switch row[0] {
		case recordProduct:
			p, err := parseProduct(row)
			if err != nil {
				return nil, fmt.Errorf("transfer: line %d: %w", line, err)
			}
			archive.Products = append(archive.Products, p)
		case recordMenu:
			m, err := parseMenu(row)
			if err != nil {
				return nil, fmt.Errorf("transfer: line %d: %w", line, err)
			}
			archive.Menus = append(archive.Menus, m)
		case recordMenuItem:
			ref, err := parseMenuItem(row)
			if err != nil {
				return nil, fmt.Errorf("transfer: line %d: %w", line, err)
			}
			archive.MenuItems = append(archive.MenuItems, ref)
		case recordOrder:
			o, err := parseOrder(row)
			if err != nil {
				return nil, fmt.Errorf("transfer: line %d: %w", line, err)
			}
			orderIndex[o.ID] = len(archive.Orders)
			archive.Orders = append(archive.Orders, o)
		case recordOrderItem:
			orderID, position, item, err := parseOrderItem(row)
			if err != nil {
				return nil, fmt.Errorf("transfer: line %d: %w", line, err)
			}
			orderItems = append(orderItems, orderItemRow{orderID: orderID, position: position, item: item})
		default:
			return nil, fmt.Errorf("transfer: line %d: unknown record type %q", line, row[0])
		}
	}

	sort.SliceStable(archive.MenuItems, func(i, j int) bool {
		a, b := archive.MenuItems[i], archive.MenuItems[j]
		if a.MenuID != b.MenuID {
			return a.MenuID < b.MenuID
		}
		return a.Position < b.Position
	})
	sort.SliceStable(orderItems, func(i, j int) bool {
		a, b := orderItems[i], orderItems[j]
		if a.orderID != b.orderID {
			return a.orderID < b.orderID
		}
		return a.position < b.position
	})

	for _, ref := range archive.MenuItems {
		for i := range archive.Menus {
			if archive.Menus[i].ID == ref.MenuID {
				archive.Menus[i].Items = append(archive.Menus[i].Items, ref.ProductID)
				break
			}
		}
	}
	for _, row := range orderItems {
		i, ok := orderIndex[row.orderID]
		if !ok {
			return nil, fmt.Errorf("transfer: order item references unknown order %s", row.orderID)
		}
		archive.Orders[i].Items = append(archive.Orders[i].Items, row.item)
	}
	return &archive, nil
}

func parseProduct(row []string) (catalog.Product, error) {
	if len(row) != 6 {
		return catalog.Product{}, fmt.Errorf("product row needs 6 fields, got %d", len(row))
	}
	id, err := parseInt(row[1])
	if err != nil {
		return catalog.Product{}, err
	}
	price, err := parseInt(row[4])
	if err != nil {
		return catalog.Product{}, err
	}
	quantity, err := parseInt(row[5])
	if err != nil {
		return catalog.Product{}, err
	}
	category := catalog.Category(row[3])
	if category != catalog.CategoryFood && category != catalog.CategoryDrink {
		return catalog.Product{}, fmt.Errorf("invalid product category %q", row[3])
	}
	return catalog.Product{ID: id, Name: row[2], Category: category, PriceCents: price, Quantity: quantity}, nil
}

func parseMenu(row []string) (catalog.CompositeMenu, error) {
	if len(row) != 4 {
		return catalog.CompositeMenu{}, fmt.Errorf("menu row needs 4 fields, got %d", len(row))
	}
	id, err := parseInt(row[1])
	if err != nil {
		return catalog.CompositeMenu{}, err
	}
	price, err := parseInt(row[3])
	if err != nil {
		return catalog.CompositeMenu{}, err
	}
	return catalog.CompositeMenu{ID: id, Name: row[2], PriceCents: price}, nil
}

func parseMenuItem(row []string) (MenuItemRef, error) {
	if len(row) != 4 {
		return MenuItemRef{}, fmt.Errorf("menu item row needs 4 fields, got %d", len(row))
	}
	menuID, err := parseInt(row[1])
	if err != nil {
		return MenuItemRef{}, err
	}
	productID, err := parseInt(row[2])
	if err != nil {
		return MenuItemRef{}, err
	}
	position, err := strconv.Atoi(row[3])
	if err != nil {
		return MenuItemRef{}, err
	}
	return MenuItemRef{MenuID: menuID, ProductID: productID, Position: position}, nil
}

func parseOrder(row []string) (orders.Order, error) {
	if len(row) != 10 {
		return orders.Order{}, fmt.Errorf("order row needs 10 fields, got %d", len(row))
	}
	number, err := parseInt(row[2])
	if err != nil {
		return orders.Order{}, err
	}
	staff, err := strconv.ParseBool(row[4])
	if err != nil {
		return orders.Order{}, err
	}
	total, err := parseInt(row[5])
	if err != nil {
		return orders.Order{}, err
	}
	createdAt, err := parseTime(row[6])
	if err != nil {
		return orders.Order{}, err
	}
	updatedAt, err := parseTime(row[7])
	if err != nil {
		return orders.Order{}, err
	}
	completedAt, err := parseTimePtr(row[8])
	if err != nil {
		return orders.Order{}, err
	}
	deliveredAt, err := parseTimePtr(row[9])
	if err != nil {
		return orders.Order{}, err
	}
	status := orders.Status(row[3])
	switch status {
	case orders.StatusInPreparation, orders.StatusReady, orders.StatusDelivered, orders.StatusCancelled:
	default:
		return orders.Order{}, fmt.Errorf("invalid order status %q", row[3])
	}
	return orders.Order{
		ID:          row[1],
		OrderNumber: number,
		Status:      status,
		Staff:       staff,
		TotalCents:  total,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		CompletedAt: completedAt,
		DeliveredAt: deliveredAt,
	}, nil
}

func parseOrderItem(row []string) (string, int, orders.Item, error) {
	if len(row) != 8 {
		return "", 0, orders.Item{}, fmt.Errorf("order item row needs 8 fields, got %d", len(row))
	}
	refID, err := parseInt(row[2])
	if err != nil {
		return "", 0, orders.Item{}, err
	}
	price, err := parseInt(row[4])
	if err != nil {
		return "", 0, orders.Item{}, err
	}
	quantity, err := parseInt(row[5])
	if err != nil {
		return "", 0, orders.Item{}, err
	}
	position, err := strconv.Atoi(row[7])
	if err != nil {
		return "", 0, orders.Item{}, err
	}
	item := orders.Item{
		RefID:      refID,
		Name:       row[3],
		PriceCents: price,
		Quantity:   quantity,
		Category:   catalog.Category(row[6]),
	}
	return row[1], position, item, nil
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseTimePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
