// Package thumbnail generates thumbnails for image and video uploads in the
// background. Uploads enqueue a task on an asynq queue; the worker asks the
// external generator for a thumbnail key and attaches it to the upload.
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
)

// TypeGenerate is the asynq task type of a thumbnail job.
const TypeGenerate = "media:thumbnail"

// QueueName is the asynq queue thumbnail jobs run on.
const QueueName = "media"

// Payload is the JSON body of a thumbnail task.
type Payload struct {
	UploadID string `json:"upload_id"`
}

// Queue enqueues thumbnail tasks.
type Queue struct {
	client   *asynq.Client
	maxRetry int
	timeout  time.Duration
}

// NewQueue wraps client. maxRetry <= 0 keeps the asynq default.
func NewQueue(client *asynq.Client, maxRetry int) *Queue {
	return &Queue{client: client, maxRetry: maxRetry, timeout: 2 * time.Minute}
}

// ParseRedisURL turns a redis:// URL into asynq connection options.
func ParseRedisURL(url string) (asynq.RedisConnOpt, error) {
	if url == "" {
		return nil, errors.New("asynq: REDIS_URL is not set")
	}
	opt, err := asynq.ParseRedisURI(url)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse REDIS_URL: %w", err)
	}
	return opt, nil
}

// EnqueueThumbnail schedules thumbnail generation for uploadID. Jobs are
// unique per upload for the task timeout.
func (q *Queue) EnqueueThumbnail(ctx context.Context, uploadID string) error {
	b, err := json.Marshal(Payload{UploadID: uploadID})
	if err != nil {
		return err
	}
	opts := []asynq.Option{
		asynq.Queue(QueueName),
		asynq.Timeout(q.timeout),
		asynq.TaskID("thumb:" + uploadID),
	}
	if q.maxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(q.maxRetry))
	}
	_, err = q.client.EnqueueContext(ctx, asynq.NewTask(TypeGenerate, b), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// Close releases the client connection.
func (q *Queue) Close() error { return q.client.Close() }
