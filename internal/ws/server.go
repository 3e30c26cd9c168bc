package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"mejaku-order-service/internal/auth"
	"mejaku-order-service/internal/config"
	"mejaku-order-service/internal/utils"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server pushes order changes over websockets. Handlers raise pg_notify on
// the order_updates channel whenever an order is created or changes status;
// one LISTEN loop per feed fans the change out to connected clients.
type Server struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config

	staffOrdersRealtime *staffOrdersRealtime
	publicOrderRealtime *publicOrderRealtime
}

func New(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config) *Server {
	srv := &Server{DB: db, Logger: logger, Config: cfg}
	srv.staffOrdersRealtime = newStaffOrdersRealtime(db, logger)
	srv.publicOrderRealtime = newPublicOrderRealtime(db, logger)
	return srv
}

type wsRealtimeClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsRealtimeClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(value)
}

func (c *wsRealtimeClient) ping(timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
}

type activeOrderItem struct {
	MenuName string `json:"menuName"`
	Quantity int32  `json:"quantity"`
	Notes    string `json:"notes,omitempty"`
}

type activeOrder struct {
	ID           int64             `json:"id"`
	OrderNumber  string            `json:"orderNumber"`
	TableCode    string            `json:"tableCode"`
	TableName    string            `json:"tableName"`
	CustomerName string            `json:"customerName"`
	Status       string            `json:"status"`
	TotalAmount  int64             `json:"totalAmount"`
	Notes        *string           `json:"notes"`
	PlacedAt     time.Time         `json:"placedAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	Items        []activeOrderItem `json:"items"`
}

type staffOrdersRealtime struct {
	db     *pgxpool.Pool
	logger *zap.Logger

	started sync.Once
	mu      sync.RWMutex
	subs    map[*wsRealtimeClient]struct{}
}

func newStaffOrdersRealtime(db *pgxpool.Pool, logger *zap.Logger) *staffOrdersRealtime {
	return &staffOrdersRealtime{
		db:     db,
		logger: logger,
		subs:   make(map[*wsRealtimeClient]struct{}),
	}
}

func (sr *staffOrdersRealtime) ensureStarted() {
	sr.started.Do(func() {
		go sr.listenLoop(context.Background())
	})
}

func (sr *staffOrdersRealtime) subscribe(client *wsRealtimeClient) (unsubscribe func()) {
	sr.mu.Lock()
	sr.subs[client] = struct{}{}
	sr.mu.Unlock()

	return func() {
		sr.mu.Lock()
		delete(sr.subs, client)
		sr.mu.Unlock()
	}
}

func (sr *staffOrdersRealtime) broadcast(message any) {
	sr.mu.RLock()
	clients := make([]*wsRealtimeClient, 0, len(sr.subs))
	for c := range sr.subs {
		clients = append(clients, c)
	}
	sr.mu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(message); err != nil {
			_ = c.conn.Close()
			sr.mu.Lock()
			delete(sr.subs, c)
			sr.mu.Unlock()
		}
	}
}

func (sr *staffOrdersRealtime) fetchActiveOrders(ctx context.Context) ([]activeOrder, error) {
	query := `
		select o.id, o.order_number, t.code, t.name, o.customer_name, o.status,
		       o.total_amount, o.notes, o.placed_at, o.updated_at
		from orders o
		join tables t on t.id = o.table_id
		where o.status in ('PENDING', 'PROCESSING')
		order by o.placed_at
	`
	rows, err := sr.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]activeOrder, 0)
	index := make(map[int64]int)
	ids := make([]int64, 0)
	for rows.Next() {
		var order activeOrder
		var notes pgtype.Text
		if err := rows.Scan(
			&order.ID, &order.OrderNumber, &order.TableCode, &order.TableName,
			&order.CustomerName, &order.Status, &order.TotalAmount, &notes,
			&order.PlacedAt, &order.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if notes.Valid {
			order.Notes = &notes.String
		}
		order.Items = []activeOrderItem{}
		index[order.ID] = len(orders)
		ids = append(ids, order.ID)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orders, nil
	}

	itemRows, err := sr.db.Query(ctx, `
		select order_id, menu_name, quantity, coalesce(notes, '')
		from order_items
		where order_id = any($1)
		order by id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var orderID int64
		var item activeOrderItem
		if err := itemRows.Scan(&orderID, &item.MenuName, &item.Quantity, &item.Notes); err != nil {
			return nil, err
		}
		if idx, ok := index[orderID]; ok {
			orders[idx].Items = append(orders[idx].Items, item)
		}
	}
	return orders, itemRows.Err()
}

func (sr *staffOrdersRealtime) fetchActiveOrdersUpdatedAt(ctx context.Context) time.Time {
	var updated time.Time
	query := `
		select coalesce(max(updated_at), now())
		from orders
		where status in ('PENDING', 'PROCESSING')
	`
	if err := sr.db.QueryRow(ctx, query).Scan(&updated); err != nil {
		return time.Time{}
	}
	return updated
}

func (sr *staffOrdersRealtime) listenLoop(ctx context.Context) {
	backoff := time.Second
	for {
		conn, err := sr.db.Acquire(ctx)
		if err != nil {
			if sr.logger != nil {
				sr.logger.Warn("orders LISTEN acquire failed", zap.Error(err))
			}
			time.Sleep(backoff)
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		_, err = conn.Exec(ctx, `listen order_updates`)
		if err != nil {
			conn.Release()
			if sr.logger != nil {
				sr.logger.Warn("orders LISTEN failed", zap.Error(err))
			}
			time.Sleep(backoff)
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		backoff = time.Second
		for {
			if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
				break
			}

			orders, fetchErr := sr.fetchActiveOrders(ctx)
			if fetchErr != nil {
				sr.broadcast(map[string]any{"type": "orders.refresh", "updatedAt": sr.fetchActiveOrdersUpdatedAt(ctx)})
				continue
			}
			sr.broadcast(map[string]any{"type": "orders.state", "data": orders})
		}

		conn.Release()
		time.Sleep(backoff)
		backoff = minDuration(backoff*2, 30*time.Second)
	}
}

type publicOrderRealtime struct {
	db     *pgxpool.Pool
	logger *zap.Logger

	started sync.Once
	mu      sync.RWMutex
	subs    map[string]map[*wsRealtimeClient]struct{}
}

func newPublicOrderRealtime(db *pgxpool.Pool, logger *zap.Logger) *publicOrderRealtime {
	return &publicOrderRealtime{
		db:     db,
		logger: logger,
		subs:   make(map[string]map[*wsRealtimeClient]struct{}),
	}
}

func (pr *publicOrderRealtime) ensureStarted() {
	pr.started.Do(func() {
		go pr.listenLoop(context.Background())
	})
}

func (pr *publicOrderRealtime) subscribe(orderNumber string, client *wsRealtimeClient) (unsubscribe func()) {
	key := strings.TrimSpace(orderNumber)
	if key == "" {
		return func() {}
	}

	pr.mu.Lock()
	if pr.subs[key] == nil {
		pr.subs[key] = make(map[*wsRealtimeClient]struct{})
	}
	pr.subs[key][client] = struct{}{}
	pr.mu.Unlock()

	return func() {
		pr.mu.Lock()
		clients := pr.subs[key]
		delete(clients, client)
		if len(clients) == 0 {
			delete(pr.subs, key)
		}
		pr.mu.Unlock()
	}
}

func (pr *publicOrderRealtime) broadcast(orderNumber string, message any) {
	key := strings.TrimSpace(orderNumber)
	if key == "" {
		return
	}

	pr.mu.RLock()
	clientsMap := pr.subs[key]
	clients := make([]*wsRealtimeClient, 0, len(clientsMap))
	for c := range clientsMap {
		clients = append(clients, c)
	}
	pr.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	for _, c := range clients {
		if err := c.writeJSON(message); err != nil {
			_ = c.conn.Close()
			pr.mu.Lock()
			if current := pr.subs[key]; current != nil {
				delete(current, c)
				if len(current) == 0 {
					delete(pr.subs, key)
				}
			}
			pr.mu.Unlock()
		}
	}
}

func (pr *publicOrderRealtime) fetchOrderStatus(ctx context.Context, orderNumber string) (string, time.Time) {
	var status string
	var updated time.Time
	query := `select status, updated_at from orders where order_number = $1`
	if err := pr.db.QueryRow(ctx, query, orderNumber).Scan(&status, &updated); err != nil {
		return "", time.Time{}
	}
	return status, updated
}

func (pr *publicOrderRealtime) listenLoop(ctx context.Context) {
	backoff := time.Second
	for {
		conn, err := pr.db.Acquire(ctx)
		if err != nil {
			if pr.logger != nil {
				pr.logger.Warn("public-order LISTEN acquire failed", zap.Error(err))
			}
			time.Sleep(backoff)
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		_, err = conn.Exec(ctx, `listen order_updates`)
		if err != nil {
			conn.Release()
			if pr.logger != nil {
				pr.logger.Warn("public-order LISTEN failed", zap.Error(err))
			}
			time.Sleep(backoff)
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		backoff = time.Second
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				break
			}
			orderNumber := strings.TrimSpace(n.Payload)
			if orderNumber == "" {
				continue
			}

			status, updatedAt := pr.fetchOrderStatus(ctx, orderNumber)
			if status == "" {
				continue
			}
			pr.broadcast(orderNumber, map[string]any{
				"type":      "order.refresh",
				"status":    status,
				"updatedAt": updatedAt,
			})
		}

		conn.Release()
		time.Sleep(backoff)
		backoff = minDuration(backoff*2, 30*time.Second)
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// StaffOrdersWS streams the active order board to authenticated staff. The
// access token travels in the token query param since browsers cannot set
// headers on websocket upgrades.
func (s *Server) StaffOrdersWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	token := auth.ParseBearerToken(r.URL.Query().Get("token"))
	claims, err := auth.VerifyAccessToken(token, s.Config.JWTSecret)
	if err != nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}
	if claims.Role != auth.RoleAdmin && claims.Role != auth.RoleStaff {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}

	s.staffOrdersRealtime.ensureStarted()
	ctx := r.Context()
	client := &wsRealtimeClient{conn: conn}
	unsubscribe := s.staffOrdersRealtime.subscribe(client)
	defer unsubscribe()

	// Initial snapshot so the board renders without waiting for a change.
	if orders, fetchErr := s.staffOrdersRealtime.fetchActiveOrders(ctx); fetchErr == nil {
		_ = client.writeJSON(map[string]any{"type": "orders.state", "data": orders})
	} else {
		_ = client.writeJSON(map[string]any{"type": "orders.refresh", "updatedAt": s.staffOrdersRealtime.fetchActiveOrdersUpdatedAt(ctx)})
	}

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(s.Config.WSHeartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if pingErr := client.ping(5 * time.Second); pingErr != nil {
				return
			}
		}
	}
}

// PublicOrderWS streams status changes for one order to the guest who placed
// it, authorized by the tracking token from order creation.
func (s *Server) PublicOrderWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	orderNumber := r.URL.Query().Get("orderNumber")
	token := r.URL.Query().Get("token")
	if orderNumber == "" || token == "" {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "invalid request"})
		return
	}

	tableCode, ok := s.getTableCodeForOrder(r.Context(), orderNumber)
	if !ok || !utils.VerifyOrderTrackingToken(s.Config.OrderTrackingSecret, token, tableCode, orderNumber) {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "order not found"})
		return
	}

	s.publicOrderRealtime.ensureStarted()
	ctx := r.Context()
	client := &wsRealtimeClient{conn: conn}
	unsubscribe := s.publicOrderRealtime.subscribe(orderNumber, client)
	defer unsubscribe()

	status, updatedAt := s.publicOrderRealtime.fetchOrderStatus(ctx, orderNumber)
	_ = client.writeJSON(map[string]any{"type": "order.refresh", "status": status, "updatedAt": updatedAt})

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(s.Config.WSHeartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if pingErr := client.ping(5 * time.Second); pingErr != nil {
				return
			}
		}
	}
}

func (s *Server) getTableCodeForOrder(ctx context.Context, orderNumber string) (string, bool) {
	var code string
	query := `select t.code from orders o join tables t on t.id = o.table_id where o.order_number = $1`
	if err := s.DB.QueryRow(ctx, query, orderNumber).Scan(&code); err != nil {
		return "", false
	}
	return code, true
}
