package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// MaxPageSize is the largest page Stripe list endpoints accept.
const MaxPageSize = 100

// ObjectType names a Stripe list endpoint.
type ObjectType struct {
	Name string
	Path string
}

// ObjectTypes lists the endpoints a download can pull, in download order.
var ObjectTypes = []ObjectType{
	{Name: "customers", Path: "/v1/customers"},
	{Name: "products", Path: "/v1/products"},
	{Name: "prices", Path: "/v1/prices"},
	{Name: "plans", Path: "/v1/plans"},
	{Name: "coupons", Path: "/v1/coupons"},
	{Name: "tax_rates", Path: "/v1/tax_rates"},
	{Name: "subscriptions", Path: "/v1/subscriptions"},
	{Name: "invoices", Path: "/v1/invoices"},
	{Name: "credit_notes", Path: "/v1/credit_notes"},
	{Name: "payment_intents", Path: "/v1/payment_intents"},
	{Name: "charges", Path: "/v1/charges"},
	{Name: "refunds", Path: "/v1/refunds"},
	{Name: "disputes", Path: "/v1/disputes"},
	{Name: "payouts", Path: "/v1/payouts"},
	{Name: "balance_transactions", Path: "/v1/balance_transactions"},
	{Name: "events", Path: "/v1/events"},
}

// LookupObjectType finds a registered object type by name.
func LookupObjectType(name string) (ObjectType, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, t := range ObjectTypes {
		if t.Name == key {
			return t, true
		}
	}
	return ObjectType{}, false
}

// Object is one listed Stripe object kept as raw JSON.
type Object struct {
	ID      string
	Created int64
	Data    json.RawMessage
}

// Page is one page of a list stream.
type Page struct {
	Type    ObjectType
	Number  int
	Objects []Object
	HasMore bool
}

// ListParams controls a list stream.
type ListParams struct {
	Limit         int
	StartingAfter string
	CreatedGTE    int64

	// BeforePage, when set, runs before each page request. Schedulers use it
	// to pace submissions; an error ends the stream.
	BeforePage func(ctx context.Context, page int) error
}

// ErrStopList ends a list stream early without error when returned by the
// page callback.
var ErrStopList = errors.New("stop list")

// List streams every page of a list endpoint to fn, following starting_after
// cursors until Stripe reports has_more=false.
func (c *Client) List(ctx context.Context, t ObjectType, params ListParams, fn func(*Page) error) error {
	if t.Path == "" {
		return fmt.Errorf("object type %q has no path", t.Name)
	}

	limit := params.Limit
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	cursor := params.StartingAfter

	for number := 1; ; number++ {
		if params.BeforePage != nil {
			if err := params.BeforePage(ctx, number); err != nil {
				return err
			}
		}

		query := url.Values{}
		query.Set("limit", strconv.Itoa(limit))
		if cursor != "" {
			query.Set("starting_after", cursor)
		}
		if params.CreatedGTE > 0 {
			query.Set("created[gte]", strconv.FormatInt(params.CreatedGTE, 10))
		}

		body, err := c.get(ctx, t.Path, query)
		if err != nil {
			return fmt.Errorf("list %s page %d: %w", t.Name, number, err)
		}

		page, err := parsePage(t, number, body)
		if err != nil {
			return err
		}

		if err := fn(page); err != nil {
			if errors.Is(err, ErrStopList) {
				return nil
			}
			return err
		}

		if !page.HasMore || len(page.Objects) == 0 {
			return nil
		}
		cursor = page.Objects[len(page.Objects)-1].ID
	}
}

func parsePage(t ObjectType, number int, body []byte) (*Page, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("list %s page %d: invalid json", t.Name, number)
	}

	root := gjson.ParseBytes(body)
	if object := root.Get("object").String(); object != "list" {
		return nil, fmt.Errorf("list %s page %d: unexpected object %q", t.Name, number, object)
	}

	page := &Page{
		Type:    t,
		Number:  number,
		HasMore: root.Get("has_more").Bool(),
	}

	var parseErr error
	root.Get("data").ForEach(func(_, item gjson.Result) bool {
		id := item.Get("id").String()
		if id == "" {
			parseErr = fmt.Errorf("list %s page %d: object without id", t.Name, number)
			return false
		}
		page.Objects = append(page.Objects, Object{
			ID:      id,
			Created: item.Get("created").Int(),
			Data:    json.RawMessage(item.Raw),
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return page, nil
}
