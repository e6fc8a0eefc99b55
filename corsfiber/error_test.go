package corsfiber

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jub0bs/corsguard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToFiberError(t *testing.T) {
	cases := []struct {
		desc string
		v    corsguard.Verdict
		err  error
		want int
	}{
		{
			desc: "status carried by the error",
			v:    corsguard.Respond(http.StatusForbidden),
			err:  &corsguard.OriginDeniedError{Origin: "https://otherdomain.com", Status: http.StatusInternalServerError},
			want: http.StatusInternalServerError,
		}, {
			desc: "status carried by the verdict only",
			v:    corsguard.Respond(http.StatusNotFound),
			err:  errors.New("denied"),
			want: http.StatusNotFound,
		},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			var ferr *fiber.Error
			require.ErrorAs(t, toFiberError(tc.v, tc.err), &ferr)
			assert.Equal(t, tc.want, ferr.Code)
			assert.Equal(t, http.StatusText(tc.want), ferr.Message)
		})
	}
}
