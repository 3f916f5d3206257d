package web

// indexHTML is the single-page swipe client. Kept inline: it is the only
// static asset.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>sift</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
nav button { margin-right: .5rem; }
nav button.active { font-weight: bold; }
.headline { display: flex; align-items: baseline; gap: .5rem; padding: .4rem 0; border-bottom: 1px solid #eee; }
.headline a { text-decoration: none; }
.headline .src { font-size: .8rem; color: #888; }
</style>
</head>
<body>
<h1>sift</h1>
<nav>
<button data-tab="liked" class="active">Liked</button>
<button data-tab="disliked">Disliked</button>
<button data-tab="all">History</button>
</nav>
<div id="headlines"></div>
<script>
let tab = 'liked';

async function load() {
  const res = await fetch('/api/headlines/' + tab);
  const items = await res.json();
  const root = document.getElementById('headlines');
  root.innerHTML = '';
  for (const item of items) {
    const row = document.createElement('div');
    row.className = 'headline';
    row.innerHTML =
      '<button data-action="dislike">&#10005;</button>' +
      '<button data-action="like">&#10003;</button>' +
      '<a href="' + item.url + '" target="_blank"></a>' +
      '<a class="src" href="' + item.source_url + '" target="_blank">&#8618;</a>';
    row.querySelector('a').textContent = item.title;
    for (const btn of row.querySelectorAll('button')) {
      btn.addEventListener('click', async () => {
        await fetch('/api/headlines/' + item.id + '/' + btn.dataset.action, { method: 'POST' });
        load();
      });
    }
    root.appendChild(row);
  }
}

for (const btn of document.querySelectorAll('nav button')) {
  btn.addEventListener('click', () => {
    tab = btn.dataset.tab;
    document.querySelector('nav button.active').classList.remove('active');
    btn.classList.add('active');
    load();
  });
}

load();
</script>
</body>
</html>
`
