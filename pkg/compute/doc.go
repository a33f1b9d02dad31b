/*
Package compute evaluates integration tasks on the worker side.

It has two halves. The formula compiler parses a user-supplied expression
into a whitelisted AST (numeric literals, the variable x, the operators
+ - * / ^, unary minus, and a fixed set of allowed functions, currently
sqrt) and interprets that tree directly. There is deliberately no escape hatch: a
formula can never name anything outside the whitelist, so formulas received
over the network cannot execute code.

The integration rules are the concrete quadrature formulas: left, right and
midpoint rectangle rules, an adaptive trapezoid rule refining to a fixed
relative precision, and Simpson's rule over an even segment count.

Integrator ties the two together behind the worker loop's compute callback.
Points where the formula is mathematically undefined (negative operand to
sqrt, division by zero, non-finite results) surface as types.ErrMathDomain,
which the worker loop translates into an ERR report and a terminal stop.
*/
package compute
