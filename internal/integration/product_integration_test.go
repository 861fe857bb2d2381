package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/obs"
	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/product"
	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/sequence"
)

const testDatabase = "gestion_bdd"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
	Errors  []string        `json:"errors"`
}

func TestProductAPIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test requires docker")
	}
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgC, dsn := startPostgres(ctx, t)
	defer terminateContainer(t, pgC)

	mongoC, mongoURI := startMongo(ctx, t)
	defer terminateContainer(t, mongoC)

	rabbitC, rabbitURL := startRabbitMQ(ctx, t)
	defer terminateContainer(t, rabbitC)

	require.NoError(t, db.RunMigrations(dsn, obs.Discard()))
	// A second run is a no-op.
	require.NoError(t, db.RunMigrations(dsn, obs.Discard()))

	app := startProductAPI(ctx, t, dsn, mongoURI, rabbitURL)
	defer app.stop()

	observer := dialAMQP(ctx, t, rabbitURL)
	defer observer.Close()
	queue := bindEventQueue(t, observer)

	client := &http.Client{Timeout: 5 * time.Second}

	t.Run("sql lifecycle", func(t *testing.T) {
		status, env := call(ctx, t, client, http.MethodPost, app.baseURL+"/api/sql/products", `{"name":"Widget","price":19.99,"category":"tools"}`)
		require.Equal(t, http.StatusCreated, status)
		var created struct {
			ID       int64   `json:"id"`
			Name     string  `json:"name"`
			Price    float64 `json:"price"`
			Category *string `json:"category"`
			InStock  bool    `json:"inStock"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &created))
		require.Equal(t, "Widget", created.Name)
		require.Equal(t, 19.99, created.Price)
		require.True(t, created.InStock)
		path := fmt.Sprintf("%s/api/sql/products/%d", app.baseURL, created.ID)

		ev := waitForEvent(ctx, t, observer, queue)
		require.Equal(t, events.ProductCreatedRoutingKey, ev.routingKey)
		require.Equal(t, "sql", ev.payload.Backend)
		require.Equal(t, fmt.Sprint(created.ID), ev.payload.ProductID)
		require.Equal(t, int64(1), ev.envelope.Sequence)

		status, env = call(ctx, t, client, http.MethodGet, app.baseURL+"/api/sql/products?category=tools&inStock=true", "")
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, 1, *env.Count)

		status, env = call(ctx, t, client, http.MethodPut, path, `{"price":9.5}`)
		require.Equal(t, http.StatusOK, status, env.Message)
		var updated struct {
			Name  string  `json:"name"`
			Price float64 `json:"price"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &updated))
		require.Equal(t, "Widget", updated.Name)
		require.Equal(t, 9.5, updated.Price)
		ev = waitForEvent(ctx, t, observer, queue)
		require.Equal(t, events.ProductUpdatedRoutingKey, ev.routingKey)
		require.Equal(t, int64(2), ev.envelope.Sequence)

		status, env = call(ctx, t, client, http.MethodPut, path, `{}`)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "No fields to update", env.Message)

		status, _ = call(ctx, t, client, http.MethodDelete, path, "")
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, events.ProductDeletedRoutingKey, waitForEvent(ctx, t, observer, queue).routingKey)

		status, env = call(ctx, t, client, http.MethodGet, path, "")
		require.Equal(t, http.StatusNotFound, status)
		require.Equal(t, "Product not found", env.Message)
	})

	t.Run("nosql lifecycle", func(t *testing.T) {
		status, env := call(ctx, t, client, http.MethodPost, app.baseURL+"/api/nosql/products", `{"name":"Gadget","price":5,"category":"toys","inStock":false}`)
		require.Equal(t, http.StatusCreated, status)
		var created struct {
			ID        string    `json:"_id"`
			InStock   bool      `json:"inStock"`
			CreatedAt time.Time `json:"createdAt"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &created))
		require.Len(t, created.ID, 24)
		require.False(t, created.InStock)
		path := app.baseURL + "/api/nosql/products/" + created.ID

		ev := waitForEvent(ctx, t, observer, queue)
		require.Equal(t, "nosql", ev.payload.Backend)
		require.Equal(t, created.ID, ev.payload.ProductID)

		status, env = call(ctx, t, client, http.MethodGet, app.baseURL+"/api/nosql/products?inStock=false", "")
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, 1, *env.Count)

		status, env = call(ctx, t, client, http.MethodPut, path, `{"name":"Gadget 2","price":6}`)
		require.Equal(t, http.StatusOK, status, env.Message)
		var replaced struct {
			Name      string    `json:"name"`
			Category  *string   `json:"category"`
			InStock   bool      `json:"inStock"`
			CreatedAt time.Time `json:"createdAt"`
			UpdatedAt time.Time `json:"updatedAt"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &replaced))
		require.Equal(t, "Gadget 2", replaced.Name)
		require.Nil(t, replaced.Category)
		require.True(t, replaced.InStock)
		require.True(t, replaced.CreatedAt.Equal(created.CreatedAt))
		require.False(t, replaced.UpdatedAt.Before(replaced.CreatedAt))
		waitForEvent(ctx, t, observer, queue)

		status, env = call(ctx, t, client, http.MethodGet, app.baseURL+"/api/nosql/products/123", "")
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "Invalid product ID format", env.Message)

		status, _ = call(ctx, t, client, http.MethodDelete, path, "")
		require.Equal(t, http.StatusOK, status)
		waitForEvent(ctx, t, observer, queue)

		status, _ = call(ctx, t, client, http.MethodGet, path, "")
		require.Equal(t, http.StatusNotFound, status)
	})

	t.Run("sql values round-trip unchanged", func(t *testing.T) {
		longName := strings.Repeat("n", 300)
		cases := []struct {
			body  string
			name  string
			price float64
		}{
			{`{"name":"A","price":1.239}`, "A", 1.239},
			{`{"name":"B","price":1e9}`, "B", 1e9},
			{`{"name":"` + longName + `","price":2}`, longName, 2},
		}
		for _, c := range cases {
			status, env := call(ctx, t, client, http.MethodPost, app.baseURL+"/api/sql/products", c.body)
			require.Equal(t, http.StatusCreated, status, env.Message)
			var got struct {
				Name  string  `json:"name"`
				Price float64 `json:"price"`
			}
			require.NoError(t, json.Unmarshal(env.Data, &got))
			require.Equal(t, c.name, got.Name)
			require.Equal(t, c.price, got.Price)
		}
	})
}

type productApp struct {
	baseURL string
	stop    func()
}

func startProductAPI(ctx context.Context, t *testing.T, dsn, mongoURI, rabbitURL string) *productApp {
	t.Helper()

	pool, err := db.NewPool(ctx, dsn, 10)
	require.NoError(t, err)

	mongoClient, err := db.ConnectMongo(ctx, mongoURI)
	require.NoError(t, err)

	conn := dialAMQP(ctx, t, rabbitURL)
	pub, err := events.NewPublisher(conn, events.PublisherOptions{
		Producer:  "product-api-it",
		Sequencer: sequence.NewRepository(pool),
	})
	require.NoError(t, err)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Documents: product.NewMongoRepository(mongoClient.Database(testDatabase)),
		Records:   product.NewPostgresRepository(pool),
		Publisher: pub,
		Logger:    obs.Discard(),
		Metrics:   obs.NewMetrics(),
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	return &productApp{
		baseURL: fmt.Sprintf("http://%s", ln.Addr().String()),
		stop: func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = server.Shutdown(shutdownCtx)

			_ = pub.Close()
			_ = conn.Close()
			pool.Close()
			_ = mongoClient.Disconnect(shutdownCtx)

			select {
			case err := <-errCh:
				t.Logf("server error: %v", err)
			default:
			}
		},
	}
}

func call(ctx context.Context, t *testing.T, client *http.Client, method, url, body string) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

type observedEvent struct {
	routingKey string
	envelope   events.EventEnvelope
	payload    events.ProductChangedPayload
}

// bindEventQueue declares an exclusive queue bound to every product event.
func bindEventQueue(t *testing.T, conn *amqp.Connection) string {
	t.Helper()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.ExchangeDeclare(events.EventsExchange, "topic", true, false, false, false, nil))
	q, err := ch.QueueDeclare("", false, true, false, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "product.#", events.EventsExchange, false, nil))
	return q.Name
}

func waitForEvent(ctx context.Context, t *testing.T, conn *amqp.Connection, queue string) observedEvent {
	t.Helper()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	pollCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	backoff := 50 * time.Millisecond
	for {
		select {
		case <-pollCtx.Done():
			t.Fatalf("timed out waiting for message on %s: %v", queue, pollCtx.Err())
		default:
		}

		msg, ok, getErr := ch.Get(queue, true)
		require.NoError(t, getErr)
		if ok {
			var ev observedEvent
			ev.routingKey = msg.RoutingKey
			require.NoError(t, json.Unmarshal(msg.Body, &ev.envelope))
			require.NoError(t, json.Unmarshal(ev.envelope.Payload, &ev.payload))
			require.Equal(t, "product-api-it", ev.envelope.Producer)
			require.NotEmpty(t, ev.envelope.CorrelationID)
			return ev
		}

		time.Sleep(backoff)
		if backoff < time.Second {
			backoff *= 2
			if backoff > time.Second {
				backoff = time.Second
			}
		}
	}
}

func startPostgres(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": testDatabase},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/%s?sslmode=disable", host, mappedPort.Port(), testDatabase)
	return container, dsn
}

func startMongo(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "27017/tcp")
	require.NoError(t, err)

	return container, fmt.Sprintf("mongodb://%s:%s/%s", host, mappedPort.Port(), testDatabase)
}

func startRabbitMQ(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3-management",
		ExposedPorts: []string{"5672/tcp", "15672/tcp"},
		WaitingFor:   wait.ForListeningPort("5672/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "5672/tcp")
	require.NoError(t, err)

	return container, fmt.Sprintf("amqp://guest:guest@%s:%s/", host, mappedPort.Port())
}

func terminateContainer(t *testing.T, c testcontainers.Container) {
	t.Helper()
	terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.Terminate(terminateCtx))
}

func dialAMQP(ctx context.Context, t *testing.T, rabbitURL string) *amqp.Connection {
	t.Helper()
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, err := amqp.DialConfig(rabbitURL, amqp.Config{
		Dial: func(network, addr string) (net.Conn, error) {
			return (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 5 * time.Second,
			}).DialContext(dialCtx, network, addr)
		},
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	require.NoError(t, err)
	return conn
}
