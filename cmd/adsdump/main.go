// Command adsdump connects to a TwinCAT target, reads one symbol by
// name, subscribes to its value, and prints every notification sample
// until interrupted. A small end-to-end smoke test for the client.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jisotalo/ads-client/ads"
)

func main() {
	netIDFlag := flag.String("netid", ads.LoopbackNetId.String(), "target AMS Net ID")
	portFlag := flag.Uint("port", 851, "target ADS port")
	routerFlag := flag.String("router", ads.DefaultRouterAddress, "local router address")
	symbolFlag := flag.String("symbol", "", "symbol name to read and subscribe to")
	flag.Parse()

	netID, err := ads.ParseAmsNetId(*netIDFlag)
	if err != nil {
		log.Fatalf("invalid -netid: %v", err)
	}
	if *symbolFlag == "" {
		log.Fatal("-symbol is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := ads.Connect(ctx,
		ads.WithTargetAmsNetId(netID),
		ads.WithTargetAdsPort(uint16(*portFlag)),
		ads.WithRouterAddress(*routerFlag),
	)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer client.Close(context.Background())

	info, err := client.ReadDeviceInfo(ctx)
	if err != nil {
		log.Fatalf("read device info: %v", err)
	}
	fmt.Printf("connected to %s\n", info)

	events := client.Events()
	errCh := events.Subscribe(ads.EventClientError)
	go func() {
		for e := range errCh {
			fmt.Fprintf(os.Stderr, "client error: %+v\n", e.Payload)
		}
	}()

	value, err := client.ReadValue(ctx, *symbolFlag)
	if err != nil {
		log.Fatalf("read %s: %v", *symbolFlag, err)
	}
	fmt.Printf("%s = %v\n", *symbolFlag, value)

	subID, err := client.SubscribeByName(context.Background(), *symbolFlag, ads.TransmissionOnChange, 0, 200*time.Millisecond, func(s ads.NotificationSample) {
		if s.Value != nil {
			fmt.Printf("[%s] %s = %v\n", s.Timestamp.Format(time.RFC3339), *symbolFlag, s.Value)
			return
		}
		fmt.Printf("[%s] %s changed (%d bytes)\n", s.Timestamp.Format(time.RFC3339), *symbolFlag, len(s.Data))
	})
	if err != nil {
		log.Fatalf("subscribe %s: %v", *symbolFlag, err)
	}
	defer client.Unsubscribe(context.Background(), subID)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	fmt.Printf("subscribed to %s, press Ctrl-C to stop\n", *symbolFlag)
	<-sig
}
