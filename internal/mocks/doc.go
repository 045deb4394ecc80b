// Package mocks provides shared test doubles for the store and auth
// interfaces.
//
// Mocks come in two flavors. TestifyMockUserStore records expectations with
// testify/mock. The others use function fields, falling back to fixed
// return values when a function is nil, for example:
//
//	jwt := &mocks.MockJWTService{
//	    ValidateTokenFn: func(ctx context.Context, token string) (*auth.Claims, error) {
//	        return &auth.Claims{UserID: "u1"}, nil
//	    },
//	}
package mocks
