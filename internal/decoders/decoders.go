// Package decoders registers every bulletin grammar with the default
// registry. Import it for side effects from any binary that decodes.
package decoders

import (
	_ "recon_parser/internal/decoders/hdob"
	_ "recon_parser/internal/decoders/outlook"
	_ "recon_parser/internal/decoders/recco"
	_ "recon_parser/internal/decoders/tcpod"
)
