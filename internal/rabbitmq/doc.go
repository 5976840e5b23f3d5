// Package rabbitmq provides the RabbitMQ side of a build step publish.
//
// This package includes:
//   - ConnectionManager: Dials the broker with a connect timeout, TLS and virtual host
//   - Publisher: Publishes one message on a fresh channel with publisher confirms
//
// A build step publishes once per run, so connections are not recovered
// automatically; a failed publish is reported to the step instead.
package rabbitmq
