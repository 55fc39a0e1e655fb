package queue

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/pharmakg/sentinel/internal/util"
	"github.com/pharmakg/sentinel/pkg/logger"
)

// QueryQueue carries asynchronous query jobs from the API server to the
// worker.
const QueryQueue = "query_queue"

// Init connects to RabbitMQ using environment configuration.
func Init() *amqp091.Connection {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnv("RABBITMQ_PORT")

	connURL := fmt.Sprintf("amqp://%s:%s@%s:%s/", user, pass, host, port)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	return conn
}

// SetupQueues declares the query queue together with its dead-letter and
// retry queues. The worker republishes a failed job to the retry queue and
// acks the original; the job comes back to the query queue after the TTL.
func SetupQueues(ch *amqp091.Channel) error {
	if _, err := ch.QueueDeclare(QueryQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare failed for %s: %w", QueryQueue, err)
	}

	if _, err := ch.QueueDeclare(QueryQueue+"_dlq", true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare failed for %s_dlq: %w", QueryQueue, err)
	}

	_, err := ch.QueueDeclare(QueryQueue+"_retry", true, false, false, false, amqp091.Table{
		"x-message-ttl":             int32(10000),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": QueryQueue,
	})
	if err != nil {
		return fmt.Errorf("queue declare failed for %s_retry: %w", QueryQueue, err)
	}
	return nil
}

// Publish enqueues a message on the given queue.
func Publish(ch *amqp091.Channel, queueName string, data []byte) error {
	return ch.Publish("", queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
}
