package proxy

import (
	M "github.com/sagernet/sing/common/metadata"

	"github.com/portcullis-proxy/portcullis/internal/reqparse"
)

// logTarget renders a parsed request's target through sing's socksaddr
// parser, for a normalized (IPv6-bracketed, canonical) form in log lines.
func logTarget(req *reqparse.Request) string {
	return M.ParseSocksaddr(req.TargetAddr()).String()
}
