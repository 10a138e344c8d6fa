package loxvm

import (
	"fmt"
	"math"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/exp/slices"
)

// Precedence orders the Pratt parser's infix binding power, low to high
// (spec.md §4.2).
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

type parseFn func(p *Parser, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// rules is the token-indexed Pratt table spec.md §4.2 describes, grounded on
// the teacher-adjacent reference compiler's `parseRules` (golox
// vm-compiler.go): method expressions stand in for that table's function
// pointers.
var rules map[TokenKind]parseRule

func init() {
	rules = map[TokenKind]parseRule{
		TokenLeftParen:    {prefix: (*Parser).grouping, infix: (*Parser).call, precedence: PrecCall},
		TokenMinus:        {prefix: (*Parser).unary, infix: (*Parser).binary, precedence: PrecTerm},
		TokenPlus:         {infix: (*Parser).binary, precedence: PrecTerm},
		TokenSlash:        {infix: (*Parser).binary, precedence: PrecFactor},
		TokenStar:         {infix: (*Parser).binary, precedence: PrecFactor},
		TokenBang:         {prefix: (*Parser).unary},
		TokenBangEqual:    {infix: (*Parser).binary, precedence: PrecEquality},
		TokenEqualEqual:   {infix: (*Parser).binary, precedence: PrecEquality},
		TokenGreater:      {infix: (*Parser).binary, precedence: PrecComparison},
		TokenGreaterEqual: {infix: (*Parser).binary, precedence: PrecComparison},
		TokenLess:         {infix: (*Parser).binary, precedence: PrecComparison},
		TokenLessEqual:    {infix: (*Parser).binary, precedence: PrecComparison},
		TokenIdentifier:   {prefix: (*Parser).variable},
		TokenString:       {prefix: (*Parser).string_},
		TokenNumber:       {prefix: (*Parser).number},
		TokenAnd:          {infix: (*Parser).and_, precedence: PrecAnd},
		TokenOr:           {infix: (*Parser).or_, precedence: PrecOr},
		TokenFalse:        {prefix: (*Parser).literal},
		TokenTrue:         {prefix: (*Parser).literal},
		TokenNil:          {prefix: (*Parser).literal},
	}
}

func ruleFor(kind TokenKind) parseRule {
	return rules[kind]
}

// funcType distinguishes the implicit top-level script Function from a
// user-declared one, the way golox's FunType does; it gates "return at top
// level" (spec.md §4.2).
type funcType int

const (
	funcTypeScript funcType = iota
	funcTypeFunction
)

type localVar struct {
	name       string
	depth      int
	initialized bool
}

const (
	maxLocals = 256
	maxParams = 32
)

// Compiler is the per-function compilation record spec.md §4.2 describes: up
// to 256 locals as (name, depth) pairs, a scope depth, and a link to the
// enclosing function's Compiler so nested `fun` declarations restore the
// right context on return.
type Compiler struct {
	enclosing  *Compiler
	function   *Function
	funcType   funcType
	locals     []localVar
	scopeDepth int
}

func newCompiler(enclosing *Compiler, funcType funcType, name string, interner *InternTable) *Compiler {
	c := &Compiler{
		enclosing: enclosing,
		function:  newFunction(interner.heap),
		funcType:  funcType,
	}
	if name != "" {
		c.function.name = interner.InternString(name)
	}
	// Slot 0 is reserved for the callee itself (spec.md §3 CallFrame note).
	c.locals = append(c.locals, localVar{name: "", depth: 0, initialized: true})
	return c
}

// Parser drives the single-pass Pratt compiler over one token stream,
// grounded on the golox reference compiler's Parser/Compiler split
// (`_examples/other_examples/acaada3d_rami3l-golox__vm-compiler.go.go`).
type Parser struct {
	lexer    *Lexer
	interner *InternTable

	current  Token
	previous Token

	hadError  bool
	panicMode bool
	errs      *multierror.Error

	compiler *Compiler
}

// Compile runs the full lex+parse+emit pipeline over source and returns the
// top-level script Function, or the accumulated compile errors (spec.md
// §4.2: "compile(source) → Function | null").
func Compile(source string, interner *InternTable) (*Function, error) {
	p := &Parser{
		lexer:    NewLexer(source),
		interner: interner,
		compiler: newCompiler(nil, funcTypeScript, "", interner),
	}

	p.advance()
	for !p.match(TokenEOF) {
		p.declaration()
	}

	function := p.endCompiler()
	if p.hadError {
		return nil, p.errs.ErrorOrNil()
	}
	return function, nil
}

func (p *Parser) currentChunk() *Chunk {
	return p.compiler.function.chunk
}

// --- token stream -----------------------------------------------------

func (p *Parser) advance() {
	p.previous = p.current
	for {
		p.current = p.lexer.Scan()
		if p.current.Kind != TokenError {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (p *Parser) check(kind TokenKind) bool {
	return p.current.Kind == kind
}

func (p *Parser) match(kind TokenKind) bool {
	if !p.check(kind) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(kind TokenKind, message string) {
	if p.current.Kind == kind {
		p.advance()
		return
	}
	p.errorAtCurrent(message)
}

// --- error reporting ----------------------------------------------------

func (p *Parser) errorAtCurrent(message string) { p.errorAt(p.current, message) }
func (p *Parser) error(message string)          { p.errorAt(p.previous, message) }

// errorAt implements spec.md §7's `[line N] Error [at 'LEX'|at end]: MSG`
// format and the panic-mode suppression rule: only the first error in a run
// of bad tokens is surfaced.
func (p *Parser) errorAt(tok Token, message string) {
	if p.panicMode {
		return
	}
	p.panicMode = true

	var where string
	switch tok.Kind {
	case TokenEOF:
		where = "at end"
	case TokenError:
		where = ""
	default:
		where = fmt.Sprintf("at '%s'", tok.Lexeme)
	}

	var formatted string
	if where == "" {
		formatted = fmt.Sprintf("[line %d] Error: %s", tok.Line, message)
	} else {
		formatted = fmt.Sprintf("[line %d] Error %s: %s", tok.Line, where, message)
	}

	p.errs = multierror.Append(p.errs, fmt.Errorf(formatted))
	p.hadError = true
}

// synchronize discards tokens until a likely statement boundary, the
// recovery half of panic-mode error handling (spec.md §4.2/§7).
func (p *Parser) synchronize() {
	p.panicMode = false

	for p.current.Kind != TokenEOF {
		if p.previous.Kind == TokenSemicolon {
			return
		}
		switch p.current.Kind {
		case TokenClass, TokenFun, TokenVar, TokenFor, TokenIf, TokenWhile, TokenPrint, TokenReturn:
			return
		}
		p.advance()
	}
}

// --- byte/word emission --------------------------------------------------

func (p *Parser) emitByte(b byte) {
	p.currentChunk().Emit(b, p.previous.Line, p.previous.Column)
}

func (p *Parser) emitBytes(b1, b2 byte) {
	p.emitByte(b1)
	p.emitByte(b2)
}

func (p *Parser) emitWord(w uint16) {
	p.currentChunk().EmitWord(w, p.previous.Line, p.previous.Column)
}

func (p *Parser) emitReturn() {
	p.emitByte(byte(OpNil))
	p.emitByte(byte(OpReturn))
}

// emitConstantIndex writes the short (1-byte) opcode form when index fits a
// byte, otherwise the long (2-byte BE) form, per spec.md §4.3's "constant
// indices ≥ 256 use the long form."
func (p *Parser) emitConstantIndex(short, long OpCode, index int) {
	if index < maxConstants1Byte {
		p.emitBytes(byte(short), byte(index))
		return
	}
	p.emitByte(byte(long))
	p.emitWord(uint16(index))
}

func (p *Parser) makeConstant(value Value) int {
	return p.currentChunk().AddConstant(value, true)
}

func (p *Parser) emitConstant(value Value) {
	p.emitConstantIndex(OpConst, OpConstLong, p.makeConstant(value))
}

// emitJump writes a placeholder forward jump and returns the offset of its
// 16-bit operand for patchJump to fill in later.
func (p *Parser) emitJump(instr OpCode) int {
	p.emitByte(byte(instr))
	p.emitWord(0xFFFF)
	return p.currentChunk().Len() - 2
}

// patchJump backfills the jump emitted at offset with the distance from just
// past its operand to the current code position.
func (p *Parser) patchJump(offset int) {
	jump := p.currentChunk().Len() - offset - 2
	if jump > maxJumpDistance {
		p.error("Too much code to jump over.")
	}
	p.currentChunk().PatchWord(offset, uint16(jump))
}

// emitLoop writes a backward JMP to loopStart. The 16-bit operand is a
// negative offset stored in its two's-complement bit pattern; the VM
// sign-extends it back to int16 before adding to ip (spec.md's JMP contract
// generalizes to either direction this way instead of a separate loop
// opcode).
func (p *Parser) emitLoop(loopStart int) {
	p.emitByte(byte(OpJump))
	offset := loopStart - (p.currentChunk().Len() + 2)
	if offset < math.MinInt16 {
		p.error("Loop body too large.")
	}
	p.emitWord(uint16(int16(offset)))
}

func (p *Parser) endCompiler() *Function {
	p.emitReturn()
	function := p.compiler.function
	p.compiler = p.compiler.enclosing
	return function
}

// --- scope & variables ----------------------------------------------------

func (p *Parser) beginScope() { p.compiler.scopeDepth++ }

func (p *Parser) endScope() {
	p.compiler.scopeDepth--
	locals := p.compiler.locals
	for len(locals) > 0 && locals[len(locals)-1].depth > p.compiler.scopeDepth {
		p.emitByte(byte(OpPop))
		locals = locals[:len(locals)-1]
	}
	p.compiler.locals = locals
}

func (p *Parser) identifierConstant(name string) int {
	return p.makeConstant(ObjValue(p.interner.InternString(name)))
}

func identifiersEqual(a, b string) bool { return a == b }

// resolveLocal scans newest-to-oldest for a local named name, the way
// spec.md §4.2 requires (so inner shadowing wins). golang.org/x/exp/slices
// supplies the reverse-then-search idiom (SPEC_FULL.md §4 "DOMAIN STACK").
func (p *Parser) resolveLocal(c *Compiler, name string) int {
	reversed := slices.Clone(c.locals)
	slices.Reverse(reversed)

	pos := slices.IndexFunc(reversed, func(l localVar) bool {
		return identifiersEqual(l.name, name)
	})
	if pos == -1 {
		return -1
	}

	local := reversed[pos]
	if !local.initialized {
		p.error("Can't read local variable in its own initializer.")
	}
	return len(c.locals) - 1 - pos
}

func (p *Parser) addLocal(name string) {
	if len(p.compiler.locals) >= maxLocals {
		p.error("Too many local variables in function.")
		return
	}
	p.compiler.locals = append(p.compiler.locals, localVar{name: name, depth: -1})
}

func (p *Parser) declareVariable() {
	if p.compiler.scopeDepth == 0 {
		return
	}
	name := p.previous.Lexeme

	reversed := slices.Clone(p.compiler.locals)
	slices.Reverse(reversed)
	for _, local := range reversed {
		if local.depth != -1 && local.depth < p.compiler.scopeDepth {
			break
		}
		if identifiersEqual(local.name, name) {
			p.error("Already a variable with this name in this scope.")
		}
	}
	p.addLocal(name)
}

func (p *Parser) parseVariable(errMsg string) int {
	p.consume(TokenIdentifier, errMsg)
	p.declareVariable()
	if p.compiler.scopeDepth > 0 {
		return 0
	}
	return p.identifierConstant(p.previous.Lexeme)
}

func (p *Parser) markInitialized() {
	if p.compiler.scopeDepth == 0 {
		return
	}
	p.compiler.locals[len(p.compiler.locals)-1].depth = p.compiler.scopeDepth
	p.compiler.locals[len(p.compiler.locals)-1].initialized = true
}

func (p *Parser) defineVariable(global int) {
	if p.compiler.scopeDepth > 0 {
		p.markInitialized()
		return
	}
	p.emitConstantIndex(OpDefGlobal, OpDefGlobalLong, global)
}

func (p *Parser) emitGetLocal(slot int) {
	switch {
	case slot == 0:
		p.emitByte(byte(OpGetLocal0))
	case slot == 1:
		p.emitByte(byte(OpGetLocal1))
	case slot == 2:
		p.emitByte(byte(OpGetLocal2))
	case slot == 3:
		p.emitByte(byte(OpGetLocal3))
	case slot == 4:
		p.emitByte(byte(OpGetLocal4))
	case slot == 5:
		p.emitByte(byte(OpGetLocal5))
	case slot == 6:
		p.emitByte(byte(OpGetLocal6))
	case slot == 7:
		p.emitByte(byte(OpGetLocal7))
	case slot == 8:
		p.emitByte(byte(OpGetLocal8))
	default:
		p.emitBytes(byte(OpGetLocal), byte(slot))
	}
}

func (p *Parser) namedVariable(name string, canAssign bool) {
	slot := p.resolveLocal(p.compiler, name)

	if slot != -1 {
		if canAssign && p.match(TokenEqual) {
			p.expression()
			p.emitBytes(byte(OpSetLocal), byte(slot))
		} else {
			p.emitGetLocal(slot)
		}
		return
	}

	global := p.identifierConstant(name)
	if canAssign && p.match(TokenEqual) {
		p.expression()
		p.emitConstantIndex(OpSetGlobal, OpSetGlobalLong, global)
	} else {
		p.emitConstantIndex(OpGetGlobal, OpGetGlobalLong, global)
	}
}

// --- expressions -----------------------------------------------------

func (p *Parser) parsePrecedence(precedence Precedence) {
	p.advance()
	prefix := ruleFor(p.previous.Kind).prefix
	if prefix == nil {
		p.error("Expect expression.")
		return
	}

	canAssign := precedence <= PrecAssignment
	prefix(p, canAssign)

	for precedence <= ruleFor(p.current.Kind).precedence {
		p.advance()
		infix := ruleFor(p.previous.Kind).infix
		infix(p, canAssign)
	}

	if canAssign && p.match(TokenEqual) {
		p.error("Invalid assignment target.")
	}
}

func (p *Parser) expression() {
	p.parsePrecedence(PrecAssignment)
}

func (p *Parser) number(canAssign bool) {
	n, err := strconv.ParseFloat(p.previous.Lexeme, 64)
	if err != nil {
		p.error("Invalid number literal.")
		return
	}
	p.emitConstant(NumberValue(n))
}

func (p *Parser) string_(canAssign bool) {
	raw := p.previous.Lexeme
	contents := raw[1 : len(raw)-1] // strip delimiters
	str := p.interner.InternString(contents)
	p.emitConstant(ObjValue(str))
}

func (p *Parser) literal(canAssign bool) {
	switch p.previous.Kind {
	case TokenFalse:
		p.emitByte(byte(OpFalse))
	case TokenTrue:
		p.emitByte(byte(OpTrue))
	case TokenNil:
		p.emitByte(byte(OpNil))
	}
}

func (p *Parser) grouping(canAssign bool) {
	p.expression()
	p.consume(TokenRightParen, "Expect ')' after expression.")
}

func (p *Parser) unary(canAssign bool) {
	kind := p.previous.Kind
	p.parsePrecedence(PrecUnary)
	switch kind {
	case TokenMinus:
		p.emitByte(byte(OpNeg))
	case TokenBang:
		p.emitByte(byte(OpNot))
	}
}

// binary implements spec.md §4.2's rewrite rules: `!=` is EQ+NOT, `>` is
// LE+NOT, `>=` is LT+NOT.
func (p *Parser) binary(canAssign bool) {
	kind := p.previous.Kind
	rule := ruleFor(kind)
	p.parsePrecedence(rule.precedence + 1)

	switch kind {
	case TokenPlus:
		p.emitByte(byte(OpAdd))
	case TokenMinus:
		p.emitByte(byte(OpSub))
	case TokenStar:
		p.emitByte(byte(OpMul))
	case TokenSlash:
		p.emitByte(byte(OpDiv))
	case TokenEqualEqual:
		p.emitByte(byte(OpEq))
	case TokenBangEqual:
		p.emitByte(byte(OpEq))
		p.emitByte(byte(OpNot))
	case TokenLess:
		p.emitByte(byte(OpLt))
	case TokenLessEqual:
		p.emitByte(byte(OpLe))
	case TokenGreater:
		p.emitByte(byte(OpLe))
		p.emitByte(byte(OpNot))
	case TokenGreaterEqual:
		p.emitByte(byte(OpLt))
		p.emitByte(byte(OpNot))
	}
}

// and_ short-circuits by leaving the left operand on the stack when it is
// already falsey, jumping past the right operand (spec.md §4.2).
func (p *Parser) and_(canAssign bool) {
	endJump := p.emitJump(OpJumpFalse)
	p.emitByte(byte(OpPop))
	p.parsePrecedence(PrecAnd)
	p.patchJump(endJump)
}

// or_ jumps to the right operand when the left is falsey, otherwise jumps
// past it (spec.md §4.2).
func (p *Parser) or_(canAssign bool) {
	elseJump := p.emitJump(OpJumpFalse)
	endJump := p.emitJump(OpJump)

	p.patchJump(elseJump)
	p.emitByte(byte(OpPop))

	p.parsePrecedence(PrecOr)
	p.patchJump(endJump)
}

func (p *Parser) variable(canAssign bool) {
	p.namedVariable(p.previous.Lexeme, canAssign)
}

func (p *Parser) argumentList() int {
	argc := 0
	if !p.check(TokenRightParen) {
		for {
			p.expression()
			if argc == maxParams {
				p.error("Can't have more than 32 arguments.")
			}
			argc++
			if !p.match(TokenComma) {
				break
			}
		}
	}
	p.consume(TokenRightParen, "Expect ')' after arguments.")
	return argc
}

func (p *Parser) call(canAssign bool) {
	argc := p.argumentList()
	p.emitBytes(byte(OpCall), byte(argc))
}

// --- statements -----------------------------------------------------

func (p *Parser) declaration() {
	switch {
	case p.match(TokenFun):
		p.funDeclaration()
	case p.match(TokenVar):
		p.varDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *Parser) statement() {
	switch {
	case p.match(TokenPrint):
		p.printStatement()
	case p.match(TokenIf):
		p.ifStatement()
	case p.match(TokenWhile):
		p.whileStatement()
	case p.match(TokenFor):
		p.forStatement()
	case p.match(TokenReturn):
		p.returnStatement()
	case p.match(TokenLeftBrace):
		p.beginScope()
		p.block()
		p.endScope()
	case p.match(TokenClass), p.match(TokenSuper), p.match(TokenThis):
		p.error("Classes are reserved and not supported.")
	default:
		p.expressionStatement()
	}
}

func (p *Parser) printStatement() {
	p.expression()
	p.consume(TokenSemicolon, "Expect ';' after value.")
	p.emitBytes(byte(OpPrint), 1)
}

func (p *Parser) expressionStatement() {
	p.expression()
	p.consume(TokenSemicolon, "Expect ';' after expression.")
	p.emitByte(byte(OpPop))
}

func (p *Parser) block() {
	for !p.check(TokenRightBrace) && !p.check(TokenEOF) {
		p.declaration()
	}
	p.consume(TokenRightBrace, "Expect '}' after block.")
}

func (p *Parser) ifStatement() {
	p.consume(TokenLeftParen, "Expect '(' after 'if'.")
	p.expression()
	p.consume(TokenRightParen, "Expect ')' after condition.")

	thenJump := p.emitJump(OpJumpFalse)
	p.emitByte(byte(OpPop))
	p.statement()

	elseJump := p.emitJump(OpJump)
	p.patchJump(thenJump)
	p.emitByte(byte(OpPop))

	if p.match(TokenElse) {
		p.statement()
	}
	p.patchJump(elseJump)
}

// whileStatement desugars as the Open Questions decision records: `L: JMPF
// end; POP; body; JMP L; end: POP` (spec.md §9).
func (p *Parser) whileStatement() {
	loopStart := p.currentChunk().Len()
	p.consume(TokenLeftParen, "Expect '(' after 'while'.")
	p.expression()
	p.consume(TokenRightParen, "Expect ')' after condition.")

	exitJump := p.emitJump(OpJumpFalse)
	p.emitByte(byte(OpPop))
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitByte(byte(OpPop))
}

// forStatement desugars into the equivalent while loop, grounded on the
// golox reference compiler's forStmt (vm-compiler.go).
func (p *Parser) forStatement() {
	p.beginScope()
	p.consume(TokenLeftParen, "Expect '(' after 'for'.")

	switch {
	case p.match(TokenSemicolon):
		// no initializer
	case p.match(TokenVar):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := p.currentChunk().Len()

	exitJump := -1
	if !p.match(TokenSemicolon) {
		p.expression()
		p.consume(TokenSemicolon, "Expect ';' after loop condition.")
		exitJump = p.emitJump(OpJumpFalse)
		p.emitByte(byte(OpPop))
	}

	if !p.check(TokenRightParen) {
		bodyJump := p.emitJump(OpJump)
		incrementStart := p.currentChunk().Len()
		p.expression()
		p.emitByte(byte(OpPop))
		p.consume(TokenRightParen, "Expect ')' after for clauses.")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	} else {
		p.consume(TokenRightParen, "Expect ')' after for clauses.")
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitByte(byte(OpPop))
	}

	p.endScope()
}

func (p *Parser) returnStatement() {
	if p.compiler.funcType == funcTypeScript {
		p.error("Can't return from top-level code.")
	}
	if p.match(TokenSemicolon) {
		p.emitReturn()
		return
	}
	p.expression()
	p.consume(TokenSemicolon, "Expect ';' after return value.")
	p.emitByte(byte(OpReturn))
}

func (p *Parser) varDeclaration() {
	global := p.parseVariable("Expect variable name.")

	if p.match(TokenEqual) {
		p.expression()
	} else {
		p.emitByte(byte(OpNil))
	}
	p.consume(TokenSemicolon, "Expect ';' after variable declaration.")
	p.defineVariable(global)
}

func (p *Parser) funDeclaration() {
	global := p.parseVariable("Expect function name.")
	p.markInitialized()
	p.function_(funcTypeFunction)
	p.defineVariable(global)
}

func (p *Parser) function_(kind funcType) {
	name := p.previous.Lexeme
	p.compiler = newCompiler(p.compiler, kind, name, p.interner)
	p.beginScope()

	p.consume(TokenLeftParen, "Expect '(' after function name.")
	if !p.check(TokenRightParen) {
		for {
			p.compiler.function.arity++
			if p.compiler.function.arity > maxParams {
				p.errorAtCurrent("Can't have more than 32 parameters.")
			}
			constIdx := p.parseVariable("Expect parameter name.")
			p.defineVariable(constIdx)
			if !p.match(TokenComma) {
				break
			}
		}
	}
	p.consume(TokenRightParen, "Expect ')' after parameters.")
	p.consume(TokenLeftBrace, "Expect '{' before function body.")
	p.block()

	function := p.endCompiler()
	p.emitConstant(ObjValue(function))
}
