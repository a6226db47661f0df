// Package all registers every uplink implementation.
package all

import (
	// uplinks
	_ "github.com/robotalks/telenode/pkg/transport/mqtt"
	_ "github.com/robotalks/telenode/pkg/transport/tcp"
	_ "github.com/robotalks/telenode/pkg/transport/ws"
	_ "github.com/robotalks/telenode/pkg/transport/xbee"
)
