package queue

import (
	"encoding/json"
	"time"

	"github.com/streadway/amqp"
	try "gopkg.in/matryer/try.v1"

	"github.com/sftpblast/sftpblast/result"
)

const brokerRetries = 5

// AMQPAdaptor publishes each outcome as JSON on a broker queue, so external
// dashboards can watch a run live.
type AMQPAdaptor struct {
	Conn      *amqp.Connection
	Channel   *amqp.Channel
	QueueName string
}

// NewAMQPAdaptor connects to the broker, retrying while it comes up, and
// declares the outcome queue.
func NewAMQPAdaptor(brokerURL, queueName string) (*AMQPAdaptor, error) {
	var conn *amqp.Connection
	err := try.Do(func(attempt int) (bool, error) {
		var derr error
		conn, derr = amqp.Dial(brokerURL)
		if derr != nil {
			time.Sleep(1 * time.Second)
			return attempt < brokerRetries, derr
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := channel.QueueDeclare(queueName, false, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}
	return &AMQPAdaptor{Conn: conn, Channel: channel, QueueName: queueName}, nil
}

// Send publishes one outcome.
func (a *AMQPAdaptor) Send(stat result.FileStat) error {
	body, err := json.Marshal(stat)
	if err != nil {
		return err
	}
	return a.Channel.Publish("", a.QueueName, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

func (a *AMQPAdaptor) Close() error {
	a.Channel.Close()
	return a.Conn.Close()
}
