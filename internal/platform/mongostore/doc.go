// Package mongostore records quality snapshots in a MongoDB collection. It is
// the alternative to the PostgreSQL snapshot store for deployments whose
// reporting stack reads from MongoDB.
package mongostore
