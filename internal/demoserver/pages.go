package demoserver

// PageVersion represents a specific version of a page with its HTML content and headers.
type PageVersion struct {
	HTML        string
	ContentType string
	Headers     map[string]string
	Cookies     []CookieDef
}

// CookieDef defines a cookie to be set.
type CookieDef struct {
	Name     string
	Value    string
	Path     string
	MaxAge   int // 0 makes a session cookie
	HttpOnly bool
	Secure   bool
	SameSite string // "Strict", "Lax", "None", or ""
}

// PageDefinition holds all versions of a single page. Version 1 is the one
// with the accessibility or consent problem; later versions fix it.
type PageDefinition struct {
	Path        string
	Description string
	Versions    map[int]PageVersion
}

// thirdPartyOrigin is replaced with an origin whose host differs from the
// one the page was requested on, so the fixture can exercise third-party
// detection without leaving the machine.
const thirdPartyOrigin = "{{THIRD_PARTY_ORIGIN}}"

// GetAllPages returns all demo page definitions.
func GetAllPages() []PageDefinition {
	return []PageDefinition{
		getHomePage(),
		getMissingAltPage(),
		getFormLabelsPage(),
		getCookiesPage(),
		getSlowHydrationPage(),
	}
}

// ===== HOME PAGE =====
func getHomePage() PageDefinition {
	return PageDefinition{
		Path:        "/",
		Description: "Conformant landing page linking every fixture",
		Versions: map[int]PageVersion{
			1: {
				HTML: `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>a11yscan fixtures</title>
</head>
<body>
    <header><h1>a11yscan fixtures</h1></header>
    <nav aria-label="Fixtures">
        <ul>
            <li><a href="/missing-alt">Images without text alternatives</a></li>
            <li><a href="/form-labels">Form fields without labels</a></li>
            <li><a href="/cookies">Tracking cookies before consent</a></li>
            <li><a href="/slow-hydration">Client-rendered content</a></li>
        </ul>
    </nav>
    <main>
        <h2>About</h2>
        <p>Each page demonstrates one class of problem the scanner reports.
        Switch a page to version 2 in the <a href="/demo/control">control panel</a>
        to see the fixed variant.</p>
    </main>
    <footer><p>Fixture site</p></footer>
</body>
</html>`,
			},
		},
	}
}

// ===== MISSING ALT =====
func getMissingAltPage() PageDefinition {
	return PageDefinition{
		Path:        "/missing-alt",
		Description: "Images without alt text (fails WCAG 1.1.1)",
		Versions: map[int]PageVersion{
			1: {
				HTML: `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>Product gallery</title>
</head>
<body>
    <main>
        <h1>Product gallery</h1>
        <img src="/static/chair.svg" width="120" height="120">
        <img src="/static/lamp.svg" width="120" height="120">
        <a href="/"><img src="/static/home.svg" width="24" height="24"></a>
    </main>
</body>
</html>`,
			},
			2: {
				HTML: `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>Product gallery</title>
</head>
<body>
    <main>
        <h1>Product gallery</h1>
        <img src="/static/chair.svg" width="120" height="120" alt="Oak dining chair">
        <img src="/static/lamp.svg" width="120" height="120" alt="Brass desk lamp">
        <a href="/"><img src="/static/home.svg" width="24" height="24" alt="Home"></a>
    </main>
</body>
</html>`,
			},
		},
	}
}

// ===== FORM LABELS =====
func getFormLabelsPage() PageDefinition {
	return PageDefinition{
		Path:        "/form-labels",
		Description: "Inputs without labels and a missing document language",
		Versions: map[int]PageVersion{
			1: {
				HTML: `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Contact us</title>
</head>
<body>
    <main>
        <h1>Contact us</h1>
        <form action="/form-labels" method="post">
            <input type="text" name="name" placeholder="Name">
            <input type="email" name="email" placeholder="Email">
            <select name="topic"><option>Sales</option><option>Support</option></select>
            <button type="submit"></button>
        </form>
    </main>
</body>
</html>`,
			},
			2: {
				HTML: `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>Contact us</title>
</head>
<body>
    <main>
        <h1>Contact us</h1>
        <form action="/form-labels" method="post">
            <label for="name">Name</label>
            <input id="name" type="text" name="name" autocomplete="name">
            <label for="email">Email</label>
            <input id="email" type="email" name="email" autocomplete="email">
            <label for="topic">Topic</label>
            <select id="topic" name="topic"><option>Sales</option><option>Support</option></select>
            <button type="submit">Send</button>
        </form>
    </main>
</body>
</html>`,
			},
		},
	}
}

// ===== COOKIES =====
func getCookiesPage() PageDefinition {
	return PageDefinition{
		Path:        "/cookies",
		Description: "Analytics and advertising cookies set before any consent, behind a CMP banner",
		Versions: map[int]PageVersion{
			1: {
				HTML: `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>Shop</title>
    <script src="` + thirdPartyOrigin + `/static/analytics.js"></script>
    <script>
        document.cookie = "_ga=GA1.1.1234567890.1700000000; max-age=63072000; path=/";
        document.cookie = "_fbp=fb.1.1700000000.987654321; max-age=7776000; path=/";
    </script>
</head>
<body>
    <div id="onetrust-banner-sdk" role="dialog" aria-label="Cookie consent">
        <p>We use cookies to improve your experience.</p>
        <button type="button">Accept all</button>
        <button type="button">Reject all</button>
    </div>
    <main>
        <h1>Shop</h1>
        <p>Spring collection.</p>
        <img src="` + thirdPartyOrigin + `/static/pixel.gif" alt="" width="1" height="1">
    </main>
</body>
</html>`,
				Cookies: []CookieDef{
					{Name: "session_id", Value: "d41d8cd98f00b204", Path: "/", HttpOnly: true, SameSite: "Lax"},
					{Name: "_gcl_au", Value: "1.1.1700000000", Path: "/", MaxAge: 7776000},
				},
			},
			2: {
				HTML: `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>Shop</title>
</head>
<body>
    <div id="onetrust-banner-sdk" role="dialog" aria-label="Cookie consent">
        <p>We use cookies to improve your experience.</p>
        <button type="button">Accept all</button>
        <button type="button">Reject all</button>
    </div>
    <main>
        <h1>Shop</h1>
        <p>Spring collection.</p>
    </main>
</body>
</html>`,
				Cookies: []CookieDef{
					{Name: "session_id", Value: "d41d8cd98f00b204", Path: "/", HttpOnly: true, SameSite: "Lax"},
				},
			},
		},
	}
}

// ===== SLOW HYDRATION =====
func getSlowHydrationPage() PageDefinition {
	return PageDefinition{
		Path:        "/slow-hydration",
		Description: "Empty shell filled by script after the load event",
		Versions: map[int]PageVersion{
			1: {
				HTML: `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>Dashboard</title>
</head>
<body>
    <div id="root"></div>
    <script>
        window.addEventListener("load", function () {
            setTimeout(function () {
                var root = document.getElementById("root");
                var html = "<main><h1>Dashboard</h1><ul>";
                for (var i = 0; i < 30; i++) {
                    html += "<li><img src=\"/static/chart.svg\" width=\"16\" height=\"16\"> Report " + i + "</li>";
                }
                root.innerHTML = html + "</ul></main>";
            }, 800);
        });
    </script>
</body>
</html>`,
			},
		},
	}
}
