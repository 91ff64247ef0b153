// Command invictus runs the dashboard server and its maintenance tasks.
//
//	invictus serve                      # HTTP, SSE, websocket and gRPC health
//	invictus route:list                 # registered HTTP routes
//	invictus migrate                    # STORE_DRIVER=sql only
//	invictus migrate:rollback
//	invictus migrate:status
//	invictus seed                       # starter profiles into an empty store
//	invictus inventory:import items.csv --as <userId>
//	invictus inventory:export --partition reorder [--archive]
//
// Configuration comes from config/app.json, .env and the environment.
package main
