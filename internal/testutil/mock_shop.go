// Package testutil provides a fake shop API for tests.
package testutil

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Route keys, as "METHOD path-template".
const (
	RouteListOrders    = "GET /orders"
	RouteIncome        = "GET /orders/income/delivered"
	RouteUpdateOrder   = "PATCH /orders/:id"
	RouteDeleteOrder   = "DELETE /orders/:id"
	RouteListProducts  = "GET /products"
	RouteGetProduct    = "GET /products/:id"
	DeleteSuccessReply = "Order deleted successfully"
)

// MockProductRef is the product embedded in an order line.
type MockProductRef struct {
	ID    string  `json:"_id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

// MockLine is one order line. A nil Product models a deleted product.
type MockLine struct {
	Product  *MockProductRef `json:"productId"`
	Quantity int             `json:"quantity"`
}

// MockOrder is an order in the shop's wire shape. Address may be a string
// or a map.
type MockOrder struct {
	ID       string            `json:"_id"`
	User     map[string]string `json:"userId"`
	Address  any               `json:"address"`
	Phone    string            `json:"phone"`
	Amount   float64           `json:"amount"`
	Status   string            `json:"status"`
	Products []MockLine        `json:"products"`
}

// MockProduct is a product in the shop's wire shape.
type MockProduct struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Price       float64   `json:"price"`
	CreatedAt   time.Time `json:"createdAt"`
	Image       string    `json:"image"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
}

// Fault is an injected error response.
type Fault struct {
	Status  int
	Message string
	Delay   time.Duration
}

// Hold parks one request until released.
type Hold struct {
	// Arrived is closed once the held request reached the server.
	Arrived chan struct{}
	release chan struct{}
	once    sync.Once
}

// Release lets the held request continue.
func (h *Hold) Release() {
	h.once.Do(func() { close(h.release) })
}

// MockShop is a configurable fake shop API backed by gin.
type MockShop struct {
	server *httptest.Server

	mu         sync.Mutex
	orders     []MockOrder
	products   []MockProduct
	income     float64
	etags      bool
	rateLimit  *[2]int
	faults     map[string][]Fault
	sticky     map[string]Fault
	holds      map[string][]*Hold
	requests   map[string]int
	queries    map[string][]string
	lastHeader http.Header
}

// NewMockShop starts a fake shop API.
func NewMockShop() *MockShop {
	gin.SetMode(gin.TestMode)

	m := &MockShop{
		faults:   make(map[string][]Fault),
		sticky:   make(map[string]Fault),
		holds:    make(map[string][]*Hold),
		requests: make(map[string]int),
		queries:  make(map[string][]string),
	}

	r := gin.New()
	r.Use(m.track)

	r.GET("/orders", m.listOrders)
	r.GET("/orders/income/delivered", m.deliveredIncome)
	r.PATCH("/orders/:id", m.updateOrder)
	r.DELETE("/orders/:id", m.deleteOrder)
	r.GET("/products", m.listProducts)
	r.GET("/products/:id", m.getProduct)

	m.server = httptest.NewServer(r)
	return m
}

// URL returns the base URL of the fake API.
func (m *MockShop) URL() string { return m.server.URL }

// Close shuts down the server, releasing any held requests first.
func (m *MockShop) Close() {
	m.mu.Lock()
	for _, hs := range m.holds {
		for _, h := range hs {
			h.Release()
		}
	}
	m.holds = make(map[string][]*Hold)
	m.mu.Unlock()
	m.server.Close()
}

// SetOrders replaces the stored orders.
func (m *MockShop) SetOrders(orders []MockOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = slices.Clone(orders)
}

// Orders returns a copy of the stored orders.
func (m *MockShop) Orders() []MockOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.orders)
}

// Order returns the stored order with id.
func (m *MockShop) Order(id string) (MockOrder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.orderIndex(id)
	if i < 0 {
		return MockOrder{}, false
	}
	return m.orders[i], true
}

// SetProducts replaces the stored products.
func (m *MockShop) SetProducts(products []MockProduct) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = slices.Clone(products)
}

// SetIncome sets the delivered income total.
func (m *MockShop) SetIncome(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.income = v
}

// Income returns the server-side delivered income.
func (m *MockShop) Income() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.income
}

// EnableETags makes GET responses carry an ETag and honour If-None-Match.
func (m *MockShop) EnableETags() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etags = true
}

// SetRateLimit makes every response carry RateLimit headers.
func (m *MockShop) SetRateLimit(remaining, resetSeconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimit = &[2]int{remaining, resetSeconds}
}

// FailNext makes the next request to route fail with f.
func (m *MockShop) FailNext(route string, f Fault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[route] = append(m.faults[route], f)
}

// FailAlways makes every request to route fail with f until ClearFaults.
func (m *MockShop) FailAlways(route string, f Fault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sticky[route] = f
}

// ClearFaults removes all injected faults.
func (m *MockShop) ClearFaults() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = make(map[string][]Fault)
	m.sticky = make(map[string]Fault)
}

// HoldNext parks the next request to route until the returned Hold is
// released. Use it to make responses arrive out of order.
func (m *MockShop) HoldNext(route string) *Hold {
	h := &Hold{Arrived: make(chan struct{}), release: make(chan struct{})}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holds[route] = append(m.holds[route], h)
	return h
}

// Requests returns how many requests reached route.
func (m *MockShop) Requests(route string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[route]
}

// Queries returns the raw query strings received on route, in order.
func (m *MockShop) Queries(route string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.queries[route])
}

// LastHeader returns the headers of the most recent request.
func (m *MockShop) LastHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeader.Clone()
}

// track counts requests, applies holds and faults and sets rate limit headers.
func (m *MockShop) track(c *gin.Context) {
	route := c.Request.Method + " " + c.FullPath()

	m.mu.Lock()
	m.requests[route]++
	m.queries[route] = append(m.queries[route], c.Request.URL.RawQuery)
	m.lastHeader = c.Request.Header.Clone()

	var hold *Hold
	if hs := m.holds[route]; len(hs) > 0 {
		hold, m.holds[route] = hs[0], hs[1:]
	}

	fault, faulty := m.sticky[route]
	if fs := m.faults[route]; len(fs) > 0 {
		fault, faulty = fs[0], true
		m.faults[route] = fs[1:]
	}

	if rl := m.rateLimit; rl != nil {
		c.Header("RateLimit-Remaining", strconv.Itoa(rl[0]))
		c.Header("RateLimit-Reset", strconv.Itoa(rl[1]))
	}
	m.mu.Unlock()

	if hold != nil {
		close(hold.Arrived)
		select {
		case <-hold.release:
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}

	if faulty {
		if fault.Delay > 0 {
			select {
			case <-time.After(fault.Delay):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		if fault.Status > 0 {
			body := gin.H{}
			if fault.Message != "" {
				body["message"] = fault.Message
			}
			c.AbortWithStatusJSON(fault.Status, body)
			return
		}
	}

	c.Next()
}

// respond writes obj as JSON, with ETag revalidation for GETs when enabled.
func (m *MockShop) respond(c *gin.Context, status int, obj any) {
	body, err := json.Marshal(obj)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	m.mu.Lock()
	etags := m.etags
	m.mu.Unlock()

	if etags && c.Request.Method == http.MethodGet && status == http.StatusOK {
		sum := sha1.Sum(body)
		etag := `"` + hex.EncodeToString(sum[:8]) + `"`
		c.Header("ETag", etag)
		if c.GetHeader("If-None-Match") == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	c.Data(status, "application/json; charset=utf-8", body)
}

func (m *MockShop) orderIndex(id string) int {
	return slices.IndexFunc(m.orders, func(o MockOrder) bool { return o.ID == id })
}

func (m *MockShop) listOrders(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "limit must be a positive integer"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "offset must be >= 0"})
		return
	}
	idFilter := c.Query("id")

	m.mu.Lock()
	matched := make([]MockOrder, 0, len(m.orders))
	for _, o := range m.orders {
		if idFilter == "" || strings.Contains(o.ID, idFilter) {
			matched = append(matched, o)
		}
	}
	m.mu.Unlock()

	page := []MockOrder{}
	if offset < len(matched) {
		page = matched[offset:min(offset+limit, len(matched))]
	}
	m.respond(c, http.StatusOK, gin.H{"orders": page, "totalOrder": len(matched)})
}

func (m *MockShop) deliveredIncome(c *gin.Context) {
	m.respond(c, http.StatusOK, gin.H{"totalDeliveredIncome": m.Income()})
}

func (m *MockShop) updateOrder(c *gin.Context) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid body"})
		return
	}
	switch payload.Status {
	case "pending", "confirmed", "delivered":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("Invalid status %q", payload.Status)})
		return
	}

	m.mu.Lock()
	i := m.orderIndex(c.Param("id"))
	if i < 0 {
		m.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"message": "Order not found"})
		return
	}
	if payload.Status == "delivered" && m.orders[i].Status != "delivered" {
		m.income += m.orders[i].Amount
	}
	m.orders[i].Status = payload.Status
	updated := m.orders[i]
	m.mu.Unlock()

	m.respond(c, http.StatusOK, updated)
}

func (m *MockShop) deleteOrder(c *gin.Context) {
	m.mu.Lock()
	i := m.orderIndex(c.Param("id"))
	if i < 0 {
		m.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"message": "Order not found"})
		return
	}
	m.orders = slices.Delete(m.orders, i, i+1)
	m.mu.Unlock()

	c.JSON(http.StatusOK, DeleteSuccessReply)
}

func (m *MockShop) listProducts(c *gin.Context) {
	m.mu.Lock()
	products := slices.Clone(m.products)
	m.mu.Unlock()
	if products == nil {
		products = []MockProduct{}
	}
	m.respond(c, http.StatusOK, products)
}

func (m *MockShop) getProduct(c *gin.Context) {
	m.mu.Lock()
	i := slices.IndexFunc(m.products, func(p MockProduct) bool { return p.ID == c.Param("id") })
	var p MockProduct
	if i >= 0 {
		p = m.products[i]
	}
	m.mu.Unlock()

	if i < 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
		return
	}
	m.respond(c, http.StatusOK, p)
}

// GenerateOrders returns n pending orders with IDs order-001, order-002, ...
// and amounts 10, 20, 30, ...
func GenerateOrders(n int) []MockOrder {
	out := make([]MockOrder, n)
	for i := range out {
		out[i] = MockOrder{
			ID:      fmt.Sprintf("order-%03d", i+1),
			User:    map[string]string{"username": fmt.Sprintf("user%d", i+1), "email": fmt.Sprintf("user%d@example.com", i+1)},
			Address: fmt.Sprintf("%d Main Street", i+1),
			Phone:   "555-0100",
			Amount:  float64((i + 1) * 10),
			Status:  "pending",
			Products: []MockLine{
				{Product: &MockProductRef{ID: "p1", Title: "Widget", Price: 5}, Quantity: 2 * (i + 1)},
			},
		}
	}
	return out
}
