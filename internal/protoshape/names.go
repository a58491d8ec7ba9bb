package protoshape

import (
	"strings"
	"unicode"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Messages and enums keep their GraphQL names.
func nameProtoMessage(graphQLName string) protoreflect.Name {
	return protoreflect.Name(graphQLName)
}

func nameProtoField(graphQLName string) protoreflect.Name {
	return protoreflect.Name(snakeCase(graphQLName))
}

// nameProtoEnumValue prefixes a value with its enum, since proto enum
// values share the scope of the enum.
func nameProtoEnumValue(enum, value string) protoreflect.Name {
	return protoreflect.Name(strings.ToUpper(snakeCase(enum)) + "_" + strings.ToUpper(value))
}

// snakeCase converts camelCase and PascalCase to snake_case. A run of
// capitals is one word: userID becomes user_id, HTTPServer http_server.
func snakeCase(s string) string {
	rs := []rune(s)
	var b strings.Builder
	for i, r := range rs {
		if i > 0 && unicode.IsUpper(r) {
			prev := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// comment turns a GraphQL description into a leading proto comment.
func comment(desc string) protobuilder.Comments {
	if desc == "" {
		return protobuilder.Comments{}
	}
	var b strings.Builder
	for line := range strings.SplitSeq(desc, "\n") {
		b.WriteString(" " + line + "\n")
	}
	return protobuilder.Comments{LeadingComment: b.String()}
}
