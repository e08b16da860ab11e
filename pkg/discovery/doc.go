// ABOUTME: Subversion Edge service discovery package
// ABOUTME: Announce and detect servers on the local network over multicast DNS
// Package discovery announces Subversion Edge servers on the local network and
// watches for servers appearing and disappearing.
//
// A Client browses one service type and reports servers through Observers:
//
//	client, err := discovery.NewClient(discovery.ServiceTypeCSVN)
//	if err != nil {
//	    return err
//	}
//	defer client.Stop()
//	client.AddObserver(discovery.ObserverFuncs{
//	    Up:   func(r discovery.ServerRecord) { fmt.Println("up", r.URL()) },
//	    Down: func(r discovery.ServerRecord) { fmt.Println("down", r.ServiceName()) },
//	})
//
// A Register publishes this host:
//
//	reg, err := discovery.NewRegister(net.ParseIP("192.168.1.10"))
//	if err != nil {
//	    return err
//	}
//	defer reg.Close()
//	err = reg.RegisterService(8080, discovery.ServiceTypeCSVN, map[discovery.ServiceKey]string{
//	    discovery.CSVNContextPath:   "/csvn",
//	    discovery.CSVNTeamForgePath: "/integration",
//	})
package discovery
