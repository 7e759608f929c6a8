package cache

import (
	"fmt"
	"strings"
)

// GenerateKeyWithParams builds "prefix:p1:p2"; nil pointers render as "all".
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range params {
		b.WriteByte(':')
		switch v := p.(type) {
		case nil:
			b.WriteString("all")
		case *int64:
			if v == nil {
				b.WriteString("all")
			} else {
				fmt.Fprintf(&b, "%d", *v)
			}
		case *string:
			if v == nil {
				b.WriteString("all")
			} else {
				b.WriteString(*v)
			}
		default:
			fmt.Fprintf(&b, "%v", v)
		}
	}
	return b.String()
}
