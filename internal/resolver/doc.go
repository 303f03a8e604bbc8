// Package resolver rewrites configuration documents whose string values carry
// token sigils. Three sigils are recognised:
//
//	@env NAME[,default]   value of an environment variable
//	@format text{token}   string with brace placeholders resolved as tokens
//	@math expr            arithmetic over numeric literals
//
// Values without a recognised sigil are returned unchanged. The @math evaluator
// only accepts numeric literals, the binary operators + - * / % ** and unary
// minus; any other construct is rejected before evaluation.
package resolver
