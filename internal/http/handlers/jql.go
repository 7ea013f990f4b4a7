package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/nhle/tracker/internal/http/middleware"
	"github.com/nhle/tracker/internal/http/response"
	"github.com/nhle/tracker/internal/jql"
	"github.com/nhle/tracker/internal/logger"
)

type JQLHandler struct {
	log      *logger.Logger
	resolver *jql.Resolver
}

func NewJQLHandler(log *logger.Logger, resolver *jql.Resolver) *JQLHandler {
	return &JQLHandler{log: log.With("handler", "JQLHandler"), resolver: resolver}
}

type operandRequest struct {
	Field    string          `json:"field"`
	Operator string          `json:"operator"`
	Operand  json.RawMessage `json:"operand"`
}

type operandResponse struct {
	Valid         bool     `json:"valid"`
	ErrorMessages []string `json:"errorMessages,omitempty"`
	Values        []string `json:"values"`
	Sanitised     string   `json:"sanitised"`
	List          bool     `json:"list"`
	Function      bool     `json:"function"`
	Empty         bool     `json:"empty"`
}

// POST /jql/operand
func (h *JQLHandler) Resolve(c *gin.Context) {
	var req operandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, err)
		return
	}
	if req.Field == "" {
		response.RespondBadRequest(c, errors.New("field is required"))
		return
	}
	op, err := jql.DecodeOperand(req.Operand)
	if err != nil {
		response.RespondBadRequest(c, err)
		return
	}
	operator := jql.Operator(req.Operator)
	if operator == "" {
		operator = jql.OpEquals
	}

	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()
	clause := jql.Clause(req.Field, operator, op)

	out := operandResponse{
		Values:    []string{},
		Sanitised: h.resolver.SanitiseOperand(ctx, user, op).DisplayString(),
		List:      h.resolver.IsListOperand(op),
		Function:  h.resolver.IsFunctionOperand(op),
		Empty:     h.resolver.IsEmptyOperand(op),
	}
	if ec := h.resolver.Validate(ctx, user, op, clause); ec.HasAnyErrors() {
		out.ErrorMessages = ec.ErrorMessages()
		response.RespondOK(c, out)
		return
	}
	out.Valid = true

	literals, err := h.resolver.Values(ctx, user, op, clause)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	for _, l := range literals {
		out.Values = append(out.Values, l.AsString())
	}
	h.log.Debug("resolved operand", "clause", clause.String(), "values", len(out.Values))
	response.RespondOK(c, out)
}
