/*
Package types defines the shared domain types for integrid.

These types cross package boundaries: the coordinator, the worker, and the
protocol codec all speak in terms of WorkerID, Method, and Task. Keeping them
here avoids import cycles between the loop packages and the controller.
*/
package types
