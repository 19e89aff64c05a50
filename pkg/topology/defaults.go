package topology

import "time"

// DefaultTopology is the shop microservice stack: compose-managed
// infrastructure, five gRPC services and five HTTP APIs run with `go run`.
func DefaultTopology() Config {
	compose := func(name, container string, wait time.Duration, services ...string) Unit {
		return Unit{
			Name:          name,
			Command:       append([]string{"docker-compose", "up", "-d"}, services...),
			ReadinessWait: wait,
			LaunchMode:    LaunchModeForeground,
			Container:     container,
		}
	}

	srv := func(name, dir, port string) Unit {
		return Unit{
			Name:             name,
			Command:          []string{"go", "run", "cmd/server/main.go", "-p", port},
			WorkingDirectory: dir,
			ReadinessWait:    3 * time.Second,
			LaunchMode:       LaunchModeBackground,
			Resolve:          ResolveDescendant,
			Match:            port,
		}
	}

	web := func(name, dir string) Unit {
		return Unit{
			Name:             name,
			Command:          []string{"go", "run", "main.go"},
			WorkingDirectory: dir,
			ReadinessWait:    2 * time.Second,
			LaunchMode:       LaunchModeBackground,
			Resolve:          ResolveDescendant,
		}
	}

	return Config{
		Infrastructure: []Unit{
			compose("mysql", "mysql", 10*time.Second, "mysql"),
			compose("redis", "redis", 5*time.Second, "redis"),
			compose("elasticsearch", "elasticsearch", 20*time.Second, "elasticsearch"),
			compose("rocketmq", "rocketmq-broker", 10*time.Second, "rocketmq-namesrv", "rocketmq-broker"),
			compose("consul", "consul", 5*time.Second, "consul"),
			compose("nacos", "nacos", 15*time.Second, "nacos"),
			compose("jaeger", "jaeger", 5*time.Second, "jaeger"),
			compose("nginx", "nginx", 3*time.Second, "nginx"),
		},
		Backend: []Unit{
			srv("user-srv", "shop_srv/user_srv", "50051"),
			srv("goods-srv", "shop_srv/goods_srv", "50052"),
			srv("inventory-srv", "shop_srv/inventory_srv", "50053"),
			srv("order-srv", "shop_srv/order_srv", "50054"),
			srv("userop-srv", "shop_srv/userop_srv", "50055"),
		},
		Gateway: []Unit{
			web("user-web", "shop_web/user-web"),
			web("goods-web", "shop_web/goods-web"),
			web("order-web", "shop_web/order-web"),
			web("userop-web", "shop_web/userop-web"),
			web("oss-web", "shop_web/oss-web"),
		},
	}
}
