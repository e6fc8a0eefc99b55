package cfgerrors_test

import (
	"errors"
	"iter"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/jub0bs/corsguard"
	"github.com/jub0bs/corsguard/cfgerrors"
)

func TestAll(t *testing.T) {
	cases := []struct {
		desc      string
		err       error
		want      []error
		breakWhen func(error) bool
	}{
		{
			desc: "singleton",
			err:  err0,
			want: []error{
				err0,
			},
			breakWhen: alwaysFalse,
		}, {
			desc: "multi-error no break",
			err:  err4,
			want: []error{
				err2,
				err3,
			},
			breakWhen: alwaysFalse,
		}, {
			desc: "multi-error break early",
			err:  err4,
			want: []error{
				err2,
			},
			breakWhen: equal(err3),
		}, {
			desc: "single joined error no break",
			err:  err1,
			want: []error{
				err0,
			},
			breakWhen: alwaysFalse,
		}, {
			desc:      "single joined error break early",
			err:       err1,
			want:      []error{},
			breakWhen: equal(err0),
		}, {
			desc:      "complex error tree no break",
			err:       err5,
			breakWhen: alwaysFalse,
			want: []error{
				err0,
				err2,
				err3,
			},
		},
	}
	for _, tc := range cases {
		f := func(t *testing.T) {
			got := cfgerrors.All(tc.err)
			assertEqual(t, got, tc.want, tc.breakWhen)
		}
		t.Run(tc.desc, f)
	}
}

var (
	err0 error = &cfgerrors.UnacceptableOriginError{Reason: "missing"}
	err1       = errors.Join(err0)
	err2 error = &cfgerrors.UnacceptableMethodError{Value: "TRACE", Reason: "forbidden"}
	err3 error = &cfgerrors.MaxAgeOutOfBoundsError{Value: -2, Default: 5, Max: 86_400, Disable: -1}
	err4 = errors.Join(err2, err3)
	err5 = errors.Join(err1, err4)
)

func TestAllOverMiddlewareErrors(t *testing.T) {
	cfg := corsguard.Config{
		Origins:         []string{"https://example.com", "null", "https://*.example.com"},
		Methods:         []string{"GET", "CONNECT"},
		RequestHeaders:  []string{"Authorization", "Cookie"},
		MaxAgeInSeconds: 86_401,
		DenialStatus:    302,
	}
	_, err := corsguard.NewMiddleware(cfg)
	if err == nil {
		t.Fatal("got nil error; want non-nil error")
	}
	want := []error{
		&cfgerrors.UnacceptableOriginError{Value: "null", Reason: "prohibited"},
		&cfgerrors.UnacceptableOriginError{Value: "https://*.example.com", Reason: "prohibited"},
		&cfgerrors.UnacceptableMethodError{Value: "CONNECT", Reason: "forbidden"},
		&cfgerrors.UnacceptableHeaderNameError{Value: "Cookie", Type: "request", Reason: "forbidden"},
		&cfgerrors.MaxAgeOutOfBoundsError{Value: 86_401, Default: 5, Max: 86_400, Disable: -1},
		&cfgerrors.DenialStatusOutOfBoundsError{Value: 302, Default: 403, Min: 400, Max: 599},
	}
	var got []error
	for err := range cfgerrors.All(err) {
		got = append(got, err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d errors (%v); want %d", len(got), got, len(want))
	}
	for i := range want {
		if !reflect.DeepEqual(got[i], want[i]) {
			t.Errorf("error #%d: got %#v; want %#v", i, got[i], want[i])
		}
	}
}

func assertEqual(
	t *testing.T,
	got iter.Seq[error],
	want []error,
	breakWhen func(error) bool,
) {
	t.Helper()
	var errs []error
	var i int
	for err := range got {
		if breakWhen(err) {
			return
		}
		errs = append(errs, err)
		if len(want) <= i {
			t.Fatalf("too many elements: got %v...; want %v", errs, want)
		}
		if err != want[i] {
			t.Fatalf("unexpected element: got %v...; want %v...", errs, want[:i+1])
		}
		i++
	}
	// i should now be equal to len(want)
	if i != len(want) {
		t.Fatalf("not enough elements: got %v; want %v...", errs, want)
	}
}

func alwaysFalse(_ error) bool {
	return false
}

func equal(target error) func(error) bool {
	return func(err error) bool {
		return err == target
	}
}

func TestPackageNamePrefixInErrorMessages(t *testing.T) {
	errs := []error{
		&cfgerrors.UnacceptableOriginError{Reason: "missing"},
		&cfgerrors.UnacceptableOriginError{Value: "foo", Reason: "invalid"},
		&cfgerrors.UnacceptableOriginError{Value: "null", Reason: "prohibited"},
		//
		&cfgerrors.UnacceptableMethodError{Value: "résumé", Reason: "invalid"},
		&cfgerrors.UnacceptableMethodError{Value: http.MethodConnect, Reason: "forbidden"},
		//
		&cfgerrors.UnacceptableHeaderNameError{Value: "résumé", Type: "request", Reason: "invalid"},
		&cfgerrors.UnacceptableHeaderNameError{Value: "Connection", Type: "request", Reason: "forbidden"},
		&cfgerrors.UnacceptableHeaderNameError{Value: "Origin", Type: "request", Reason: "prohibited"},
		&cfgerrors.UnacceptableHeaderNameError{Value: "résumé", Type: "response", Reason: "invalid"},
		&cfgerrors.UnacceptableHeaderNameError{Value: "Set-Cookie", Type: "response", Reason: "forbidden"},
		//
		&cfgerrors.MaxAgeOutOfBoundsError{Value: -2, Default: 5, Max: 86_400, Disable: -1},
		//
		&cfgerrors.PreflightSuccessStatusOutOfBoundsError{Value: 300, Default: 204, Min: 200, Max: 299},
		&cfgerrors.DenialStatusOutOfBoundsError{Value: 302, Default: 403, Min: 400, Max: 599},
		//
		&cfgerrors.IncompatibleOriginError{Value: "http://example.com", Reason: "credentialed"},
		&cfgerrors.IncompatibleOriginError{Value: "https://github.io", Reason: "psl"},
		&cfgerrors.IncompatibleOriginError{Reason: "unknown"},
		//
		new(cfgerrors.IncompatibleWildcardResponseHeaderNameError),
	}
	const wantPrefix = "corsguard: "
	for _, err := range errs {
		if msg := err.Error(); !strings.HasPrefix(msg, wantPrefix) {
			t.Errorf("missing package-name prefix in %q", msg)
		}
	}
}

// comparability checks
var (
	_ map[cfgerrors.UnacceptableOriginError]struct{}
	_ map[cfgerrors.UnacceptableMethodError]struct{}
	_ map[cfgerrors.UnacceptableHeaderNameError]struct{}
	_ map[cfgerrors.MaxAgeOutOfBoundsError]struct{}
	_ map[cfgerrors.PreflightSuccessStatusOutOfBoundsError]struct{}
	_ map[cfgerrors.DenialStatusOutOfBoundsError]struct{}
	_ map[cfgerrors.IncompatibleOriginError]struct{}
	_ map[cfgerrors.IncompatibleWildcardResponseHeaderNameError]struct{}
)
