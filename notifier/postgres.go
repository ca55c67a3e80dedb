package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nischalstha-ns/e-commerce-sub001/models"
	"github.com/nischalstha-ns/e-commerce-sub001/repository"
	"go.uber.org/zap"
)

// PostgresChannel is the LISTEN/NOTIFY channel carrying owner ids.
const PostgresChannel = "cart_events"

// CartReader loads the current cart of an owner.
type CartReader interface {
	ReadCart(ctx context.Context, ownerID string) (*models.Cart, error)
}

// PostgresNotifier sends the owner id through NOTIFY and re-reads the cart
// when a notification arrives, so payloads stay well under the 8000 byte
// NOTIFY limit. One dedicated connection listens for the whole process;
// subscribers are served from a local Hub.
type PostgresNotifier struct {
	pool   *pgxpool.Pool
	store  CartReader
	hub    *Hub
	logger *zap.Logger

	retry  time.Duration
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPostgresNotifier starts the listener. It returns once LISTEN has been
// issued on the first connection.
func NewPostgresNotifier(ctx context.Context, pool *pgxpool.Pool, store CartReader, logger *zap.Logger) (*PostgresNotifier, error) {
	n := &PostgresNotifier{
		pool:   pool,
		store:  store,
		hub:    NewHub(logger),
		logger: logger,
		retry:  2 * time.Second,
		done:   make(chan struct{}),
	}

	conn, err := n.listen(ctx)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	go n.run(runCtx, conn)
	return n, nil
}

func (n *PostgresNotifier) listen(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.ConnectConfig(ctx, n.pool.Config().ConnConfig.Copy())
	if err != nil {
		return nil, fmt.Errorf("connect listener: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{PostgresChannel}.Sanitize()); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("LISTEN %s: %w", PostgresChannel, err)
	}
	return conn, nil
}

func (n *PostgresNotifier) run(ctx context.Context, conn *pgx.Conn) {
	defer close(n.done)
	for {
		err := n.consume(ctx, conn)
		_ = conn.Close(context.Background())
		if ctx.Err() != nil {
			return
		}
		n.logger.Warn("cart listener connection lost, reconnecting", zap.Error(err))

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(n.retry):
			}
			conn, err = n.listen(ctx)
			if err == nil {
				break
			}
			n.logger.Warn("cart listener reconnect failed", zap.Error(err))
		}
	}
}

func (n *PostgresNotifier) consume(ctx context.Context, conn *pgx.Conn) error {
	for {
		note, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		n.dispatch(ctx, note.Payload)
	}
}

// dispatch reloads the cart of ownerID and fans it out locally.
func (n *PostgresNotifier) dispatch(ctx context.Context, ownerID string) {
	if !n.hub.HasSubscribers(ownerID) {
		return
	}
	cart, err := n.store.ReadCart(ctx, ownerID)
	if errors.Is(err, repository.ErrCartNotFound) {
		cart = models.NewEmptyCart(ownerID)
	} else if err != nil {
		n.logger.Warn("reload cart for notification failed", zap.String("owner_id", ownerID), zap.Error(err))
		return
	}
	_ = n.hub.Publish(ctx, cart)
}

// Publish issues NOTIFY cart_events with the owner id as payload.
func (n *PostgresNotifier) Publish(ctx context.Context, cart *models.Cart) error {
	if cart == nil {
		return errors.New("nil cart")
	}
	if err := repository.ValidateOwnerID(cart.OwnerID); err != nil {
		return err
	}
	if _, err := n.pool.Exec(ctx, "SELECT pg_notify($1, $2)", PostgresChannel, cart.OwnerID); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

func (n *PostgresNotifier) Subscribe(ctx context.Context, ownerID string) (*Subscription, error) {
	return n.hub.Subscribe(ctx, ownerID)
}

// Close stops the listener and ends every subscription.
func (n *PostgresNotifier) Close() error {
	if n.cancel != nil {
		n.cancel()
		<-n.done
	}
	return n.hub.Close()
}
