// Package cmd provides CLI commands for cryptagraph.
//
// # Commands
//
// node: Runs one rank of a distributed search cluster. Each rank serves
// the peer frame endpoint, the operator API and health checks on one
// listener, and optionally Prometheus metrics on a second one.
//
//	go run ./cmd/node --config=node.yaml
//	go run ./cmd/node --config=node.yaml --rank=1
//
// search: Runs a complete search on a single machine, spreading the work
// over in-process ranks. Useful for small parameter sets and for checking
// cluster results locally.
//
//	go run ./cmd/search --cipher=present --rounds=7 0x1
//	go run ./cmd/search --nodes=4 --top=10 0x21
//
// # Configuration
//
// The node command supports YAML configuration files via the --config
// flag. Command-line flags override config file values.
//
// Example config:
//
//	listen_addr: ":8080"
//	metrics_addr: ":9090"
//	cluster:
//	  rank: 0
//	  fanout: 2
//	  peers:
//	    - "http://search-0.internal:8080"
//	    - "http://search-1.internal:8080"
//	search:
//	  cipher: present
//	  alpha: "0x1"
//	  rounds: 7
//	  limit: 1048576
//	  budget: 4
//	postgres:
//	  host: db.internal
//	  port: 5432
//	  user: cryptagraph
//	  password: secret
//	  database: cryptagraph
//
// # Cluster Deployment
//
// Every rank runs the same node binary with the same search section; only
// cluster.rank differs. Rank 0 is the root of the reduce tree. Nodes find
// each other through the peers list and wait until every peer answers its
// liveness probe before the first round starts.
//
// With a postgres section configured, the root persists every finalized
// round. An interrupted search restarts from the last finalized round by
// setting resume_round on all ranks.
package cmd
